package main

import "github.com/alvesdmateus/registry-migrator/internal/cli/commands"

func main() {
	commands.Execute()
}
