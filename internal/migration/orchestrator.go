// Package migration copies every tagged image of a source registry into a target registry.
//
// A run verifies the target, acquires source credentials once, then walks the
// source catalog repository by repository. Only configuration, precondition,
// authentication and repository-listing failures abort a run; everything below
// that is recorded in the Report and the run moves on.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// Orchestrator sequences a migration run
type Orchestrator struct {
	settings    Settings
	source      registry.Source
	target      registry.Target
	catalog     *Catalog
	provisioner *Provisioner
	migrator    *Migrator
	observer    Observer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	settings Settings,
	source registry.Source,
	target registry.Target,
	importer registry.Importer,
	logger zerolog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		settings:    settings,
		source:      source,
		target:      target,
		catalog:     NewCatalog(source, settings.Repositories, logger),
		provisioner: NewProvisioner(target, logger),
		migrator:    NewMigrator(importer, source.Endpoint().Host, settings.Target.Name, settings.importTimeout(), logger),
		observer:    nopObserver{},
		logger:      logger.With().Str("component", "orchestrator").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run migrates every tagged image. The returned report is never nil; when the
// error is non-nil the run was aborted and the report holds what completed before.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Source:    o.source.Endpoint().Host,
		Target:    o.settings.Target.Name,
		StartedAt: o.now(),
	}
	logger := o.logger.With().Str("run_id", report.RunID).Logger()

	ctx, span := tracer.Start(ctx, "migration.run", trace.WithAttributes(AttrRunID.String(report.RunID)))
	defer span.End()

	if err := o.settings.Validate(); err != nil {
		return o.abort(span, logger, report, err)
	}

	if err := o.target.Verify(ctx); err != nil {
		return o.abort(span, logger, report, &PreconditionError{Registry: o.settings.Target.Name, Err: err})
	}

	creds, err := o.source.Authenticate(ctx)
	if err != nil {
		return o.abort(span, logger, report, &AuthError{Registry: o.source.Endpoint().Host, Err: err})
	}
	logger.Info().Msg("Acquired source registry credentials")

	repos, err := o.catalog.Repositories(ctx)
	if err != nil {
		return o.abort(span, logger, report, err)
	}
	logger.Info().Msgf("Found %d repositories in source registry", len(repos))

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return o.abort(span, logger, report, fmt.Errorf("run interrupted before repository %s: %w", repo, err))
		}
		o.migrateRepository(ctx, logger, report, repo, creds)
	}

	report.FinishedAt = o.now()
	summary := report.Summary()

	logger.Info().
		Int("migrated", summary.Migrated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("total", summary.Total).
		Int("repository_errors", len(report.RepositoryErrors)).
		Int("provision_warnings", len(report.ProvisionWarnings)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msgf("Migration finished: %s", summary)

	span.SetAttributes(
		attribute.Int("migration.migrated", summary.Migrated),
		attribute.Int("migration.skipped", summary.Skipped),
		attribute.Int("migration.failed", summary.Failed),
	)
	o.notify(logger, func() { o.observer.RunFinished(report) })

	return report, nil
}

func (o *Orchestrator) migrateRepository(ctx context.Context, logger zerolog.Logger, report *Report, repo string, creds registry.Credentials) {
	logger = logger.With().Str("repository", repo).Logger()
	logger.Info().Msgf("Processing repository: %s", repo)
	report.Repositories = append(report.Repositories, repo)
	o.notify(logger, func() { o.observer.RepositoryStarted(repo) })

	ctx, span := tracer.Start(ctx, "migration.repository", trace.WithAttributes(AttrRepository.String(repo)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Unexpected failure while processing repository")
			span.SetStatus(codes.Error, fmt.Sprint(r))
			report.RepositoryErrors = append(report.RepositoryErrors, RepositoryError{
				Repository: repo,
				Error:      fmt.Sprint(r),
			})
		}
	}()

	if err := o.provisioner.Ensure(ctx, repo); err != nil {
		logger.Warn().Err(err).Msg("Could not create target repository, continuing")
		report.ProvisionWarnings = append(report.ProvisionWarnings, repo)
	}

	images, err := o.catalog.Images(ctx, repo)
	if err != nil {
		logger.Error().Err(err).Msg("Skipping repository")
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing images failed")
		report.RepositoryErrors = append(report.RepositoryErrors, RepositoryError{
			Repository: repo,
			Error:      err.Error(),
		})
		return
	}

	if len(images) == 0 {
		logger.Info().Msgf("No images found in %s, skipping", repo)
		return
	}

	logger.Info().Msgf("Found %d images in %s. Starting migration...", len(images), repo)

	// Workers never return an error, so a failed image cannot cancel its siblings.
	outcomes := make([]Outcome, len(images))
	var g errgroup.Group
	g.SetLimit(o.settings.workers())
	for i, id := range images {
		g.Go(func() error {
			outcomes[i] = o.migrator.Migrate(ctx, repo, id, creds)
			o.notify(logger, func() { o.observer.ImageFinished(outcomes[i]) })
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = append(report.Outcomes, outcomes...)
}

func (o *Orchestrator) abort(span trace.Span, logger zerolog.Logger, report *Report, err error) (*Report, error) {
	report.Aborted = true
	report.Error = err.Error()
	report.FinishedAt = o.now()

	span.RecordError(err)
	span.SetStatus(codes.Error, "run aborted")
	o.notify(logger, func() { o.observer.RunFinished(report) })

	summary := report.Summary()
	logger.WithLevel(zerolog.FatalLevel).
		Err(err).
		Int("migrated", summary.Migrated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("total", summary.Total).
		Int("repository_errors", len(report.RepositoryErrors)).
		Msgf("A critical error occurred during the migration process, completed before the failure: %s", summary)

	return report, err
}

// notify runs an observer callback; a panicking observer never affects the run
func (o *Orchestrator) notify(logger zerolog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Observer panicked")
		}
	}()
	fn()
}
