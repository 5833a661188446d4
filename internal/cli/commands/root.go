package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "migrator",
	Short: "registry-migrator - Copy container images from Amazon ECR into Azure Container Registry",
	Long: `registry-migrator copies every tagged image of an Amazon ECR registry into an
Azure Container Registry, creating target repositories as it goes.

Core Flow:
  Verify ACR → ECR credentials → Repositories → Provision → Import each tag → Report`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default searches ./migrator.yaml and ./config/migrator.yaml)")
	flags.String("env-file", "", "env file loaded before reading the environment (default .env if present)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-file", "", "append a plain text log to this file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}

// addSourceFlags registers the flags selecting the ECR registry and repositories
func addSourceFlags(flags *pflag.FlagSet) {
	flags.String("region", "", "AWS region of the source registry (AWS_REGION)")
	flags.String("account-id", "", "AWS account id owning the source registry (ECR_ACCOUNT_ID)")
	flags.StringSlice("repository", nil, "only migrate these repositories; repeat or comma separate")
}

// addTargetFlags registers the flags selecting the ACR registry
func addTargetFlags(flags *pflag.FlagSet) {
	flags.String("registry", "", "target registry name without .azurecr.io (ACR_NAME)")
	flags.String("subscription", "", "Azure subscription id of the target registry (AZURE_SUBSCRIPTION_ID)")
}
