package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/alvesdmateus/registry-migrator/internal/migration"
	"github.com/alvesdmateus/registry-migrator/internal/observability"
	"github.com/alvesdmateus/registry-migrator/internal/registry/transport"
	"github.com/alvesdmateus/registry-migrator/pkg/config"
)

// ErrImagesFailed is returned in strict mode when a completed run has failed images
var ErrImagesFailed = errors.New("one or more images failed to migrate")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every tagged image from ECR into ACR",
	Long: `Copy every tagged image from the source ECR registry into the target ACR registry.

The run stops only when the target cannot be verified, source credentials cannot
be obtained or the repository list cannot be read. Any other failure is recorded
and the run moves on. Failed images are listed at the end; pass --strict to turn
them into a non-zero exit status.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	flags := migrateCmd.Flags()
	addSourceFlags(flags)
	addTargetFlags(flags)
	flags.String("transport", "", "copy transport: import, docker or crane (default import)")
	flags.Int("workers", 0, "images copied concurrently within a repository (default 1)")
	flags.Duration("import-timeout", 0, "timeout for a single image import (default 30m)")
	flags.String("report", "", "write the run report as YAML to this file")
	flags.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	flags.Bool("trace", false, "export OpenTelemetry spans over OTLP/HTTP")
	flags.String("trace-endpoint", "", "OTLP/HTTP collector endpoint (default localhost:4318)")
	flags.Bool("strict", false, "exit non-zero when any image fails")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(ctx, tracingConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	settings := settingsFromConfig(cfg)
	ctx, span := tracer.StartSpan(ctx, "migrate", trace.WithAttributes(
		observability.RunSpanAttributes(settings.Source.Host, settings.Target.Name, cfg.Migration.Transport)...,
	))
	defer span.End()
	cmd.SetContext(ctx)

	source, err := newSource(cmd, cfg)
	if err != nil {
		return err
	}
	target := newTarget(cfg)

	importer, err := transport.New(transport.Kind(cfg.Migration.Transport), target, transport.Options{
		CleanupLocal: cfg.Migration.CleanupLocal,
	})
	if err != nil {
		return err
	}
	defer importer.Close()

	if tracer.IsEnabled() {
		logger.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("Exporting traces over OTLP/HTTP")
	}

	logger.Info().
		Str("source", settings.Source.Host).
		Str("target", settings.Target.Host).
		Str("transport", cfg.Migration.Transport).
		Int("workers", cfg.Migration.Workers).
		Msg("Starting migration")

	metrics := observability.NewMetrics("")
	orch := migration.NewOrchestrator(settings, source, target, importer, logger, migration.WithObserver(metrics))
	report, runErr := orch.Run(ctx)

	exportRun(logger, cfg, report, metrics)

	strict, _ := cmd.Flags().GetBool("strict")
	return finishRun(cmd.OutOrStdout(), report, runErr, strict)
}

// exportRun writes the report and metrics files; export failures never change the exit status
func exportRun(logger zerolog.Logger, cfg *config.Config, report *migration.Report, metrics *observability.Metrics) {
	if path := cfg.Migration.ReportFile; path != "" {
		if err := report.WriteFile(path); err != nil {
			logger.Error().Err(err).Msg("Failed to write report")
		} else {
			logger.Info().Str("path", path).Msg("Report written")
		}
	}

	if path := cfg.Metrics.File; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Error().Err(err).Msg("Failed to write metrics")
		}
	}
}

// finishRun prints the outcome of a run and maps it to the command error
func finishRun(out io.Writer, report *migration.Report, runErr error, strict bool) error {
	summary := report.Summary()
	if runErr != nil {
		fmt.Fprintf(out, "Migration aborted: %v\n", runErr)
		fmt.Fprintf(out, "Completed before the failure: %s\n", summary)
	} else {
		fmt.Fprintf(out, "Migration complete: %s\n", summary)
	}

	for _, repoErr := range report.RepositoryErrors {
		fmt.Fprintf(out, "  repository %s skipped: %s\n", repoErr.Repository, repoErr.Error)
	}
	for _, failure := range report.Failures() {
		fmt.Fprintf(out, "  FAILED %s: %s\n", failure.Source, failure.Reason)
	}

	if runErr != nil {
		return runErr
	}
	if strict && summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrImagesFailed, summary.Failed, summary.Total)
	}
	return nil
}
