package acr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// Runner executes a CLI command and returns its captured output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes the command and captures stdout and stderr separately
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ErrCommandFailed is returned when a CLI invocation exits unsuccessfully
type ErrCommandFailed struct {
	Command  string // redacted
	ExitCode int
	Stderr   string
	Err      error
}

func (e ErrCommandFailed) Error() string {
	msg := fmt.Sprintf("command %q failed (exit code %d)", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e ErrCommandFailed) Unwrap() error {
	return e.Err
}

// secretFlags take a secret as their next argument
var secretFlags = map[string]bool{
	"--password": true,
	"-p":         true,
}

// RedactCommand renders a command line with secret values replaced
func RedactCommand(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)

	redactNext := false
	for _, arg := range args {
		switch {
		case redactNext:
			parts = append(parts, registry.Redacted)
			redactNext = false
		case secretFlags[arg]:
			parts = append(parts, arg)
			redactNext = true
		case strings.HasPrefix(arg, "--password="):
			parts = append(parts, "--password="+registry.Redacted)
		default:
			parts = append(parts, arg)
		}
	}

	return strings.Join(parts, " ")
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := c.runner.Run(ctx, c.cliPath, args...)
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return stdout, ErrCommandFailed{
			Command:  RedactCommand(c.cliPath, args...),
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(string(stderr)),
			Err:      err,
		}
	}

	return stdout, nil
}

func stderrContains(err error, substr string) bool {
	var cmdErr ErrCommandFailed
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(strings.ToLower(cmdErr.Stderr), substr)
}
