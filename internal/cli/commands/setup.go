package commands

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alvesdmateus/registry-migrator/internal/migration"
	"github.com/alvesdmateus/registry-migrator/internal/observability"
	"github.com/alvesdmateus/registry-migrator/internal/registry"
	"github.com/alvesdmateus/registry-migrator/internal/registry/acr"
	"github.com/alvesdmateus/registry-migrator/internal/registry/ecr"
	"github.com/alvesdmateus/registry-migrator/pkg/config"
	"github.com/alvesdmateus/registry-migrator/pkg/logging"
)

// loadConfig reads configuration with the command's flags bound on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")

	return config.Load(config.LoadOptions{
		EnvFile:    envFile,
		ConfigFile: configFile,
		Flags:      flags,
	})
}

func setupLogging(cfg *config.Config, console io.Writer) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: console,
	})
}

func settingsFromConfig(cfg *config.Config) migration.Settings {
	return migration.Settings{
		Source: registry.Endpoint{
			Host:    ecr.Host(cfg.Source.AccountID, cfg.Source.Region),
			Region:  cfg.Source.Region,
			Account: cfg.Source.AccountID,
		},
		Target: registry.Endpoint{
			Name:    cfg.Target.Name,
			Host:    acr.Host(cfg.Target.Name),
			Account: cfg.Target.SubscriptionID,
		},
		Workers:       cfg.Migration.Workers,
		ImportTimeout: cfg.Migration.ImportTimeout,
		Repositories:  cfg.Migration.Repositories,
	}
}

func tracingConfig(cfg *config.Config) observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.OTLPEndpoint = cfg.Tracing.Endpoint
	tc.SampleRate = cfg.Tracing.SampleRate
	tc.ServiceVersion = version
	return tc
}

func newSource(cmd *cobra.Command, cfg *config.Config) (*ecr.Client, error) {
	return ecr.NewClient(cmd.Context(), ecr.Config{
		Region:    cfg.Source.Region,
		AccountID: cfg.Source.AccountID,
	})
}

func newTarget(cfg *config.Config) *acr.Client {
	return acr.NewClient(acr.Config{
		Name:           cfg.Target.Name,
		SubscriptionID: cfg.Target.SubscriptionID,
		CLIPath:        cfg.Target.CLIPath,
	}, nil)
}
