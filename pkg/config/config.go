package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the migrator
type Config struct {
	Source    SourceConfig
	Target    TargetConfig
	Migration MigrationConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// SourceConfig identifies the ECR registry images are read from
type SourceConfig struct {
	Region    string
	AccountID string
}

// TargetConfig identifies the ACR registry images are written to
type TargetConfig struct {
	Name           string
	SubscriptionID string
	CLIPath        string
}

// MigrationConfig tunes a run
type MigrationConfig struct {
	Transport     string
	Workers       int
	ImportTimeout time.Duration
	ReportFile    string
	Repositories  []string
	CleanupLocal  bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
	File  string
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	// File receives the run metrics in Prometheus text format; empty disables export
	File string
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// EnvFile is loaded into the process environment first; empty means ".env" if present
	EnvFile string
	// ConfigFile is an explicit YAML file; empty searches for migrator.yaml
	ConfigFile string
	// Flags are bound over every other source
	Flags *pflag.FlagSet
}

// envBindings maps config keys to the environment variables operators already use
var envBindings = map[string]string{
	"source.region":            "AWS_REGION",
	"source.account_id":        "ECR_ACCOUNT_ID",
	"target.name":              "ACR_NAME",
	"target.subscription_id":   "AZURE_SUBSCRIPTION_ID",
	"target.cli_path":          "AZ_CLI_PATH",
	"migration.transport":      "MIGRATION_TRANSPORT",
	"migration.workers":        "MIGRATION_WORKERS",
	"migration.import_timeout": "MIGRATION_IMPORT_TIMEOUT",
	"migration.report_file":    "MIGRATION_REPORT_FILE",
	"migration.repositories":   "MIGRATION_REPOSITORIES",
	"migration.cleanup_local":  "MIGRATION_CLEANUP_LOCAL",
	"log.level":                "LOG_LEVEL",
	"log.file":                 "LOG_FILE",
	"metrics.file":             "MIGRATION_METRICS_FILE",
	"tracing.enabled":          "TRACING_ENABLED",
	"tracing.endpoint":         "TRACING_ENDPOINT",
	"tracing.sample_rate":      "TRACING_SAMPLE_RATE",
}

// flagBindings maps config keys to command line flags
var flagBindings = map[string]string{
	"source.region":            "region",
	"source.account_id":        "account-id",
	"target.name":              "registry",
	"target.subscription_id":   "subscription",
	"migration.transport":      "transport",
	"migration.workers":        "workers",
	"migration.import_timeout": "import-timeout",
	"migration.report_file":    "report",
	"migration.repositories":   "repository",
	"log.level":                "log-level",
	"log.file":                 "log-file",
	"metrics.file":             "metrics-file",
	"tracing.enabled":          "trace",
	"tracing.endpoint":         "trace-endpoint",
}

// Load loads configuration from a .env file, an optional config file, environment variables and flags
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("migrator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars only
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if opts.Flags != nil {
		for key, name := range flagBindings {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	return &Config{
		Source: SourceConfig{
			Region:    v.GetString("source.region"),
			AccountID: v.GetString("source.account_id"),
		},
		Target: TargetConfig{
			Name:           v.GetString("target.name"),
			SubscriptionID: v.GetString("target.subscription_id"),
			CLIPath:        v.GetString("target.cli_path"),
		},
		Migration: MigrationConfig{
			Transport:     v.GetString("migration.transport"),
			Workers:       v.GetInt("migration.workers"),
			ImportTimeout: v.GetDuration("migration.import_timeout"),
			ReportFile:    v.GetString("migration.report_file"),
			Repositories:  splitList(v.GetStringSlice("migration.repositories")),
			CleanupLocal:  v.GetBool("migration.cleanup_local"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		Metrics: MetricsConfig{
			File: v.GetString("metrics.file"),
		},
		Tracing: TracingConfig{
			Enabled:    v.GetBool("tracing.enabled"),
			Endpoint:   v.GetString("tracing.endpoint"),
			SampleRate: v.GetFloat64("tracing.sample_rate"),
		},
	}, nil
}

// loadEnvFile does not override variables already set in the environment
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated value
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Target defaults
	v.SetDefault("target.cli_path", "az")

	// Migration defaults
	v.SetDefault("migration.transport", "import")
	v.SetDefault("migration.workers", 1)
	v.SetDefault("migration.import_timeout", 30*time.Minute)
	v.SetDefault("migration.report_file", "")
	v.SetDefault("migration.repositories", []string{})
	v.SetDefault("migration.cleanup_local", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "ecr_to_acr_migration.log")

	// Observability defaults
	v.SetDefault("metrics.file", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
}
