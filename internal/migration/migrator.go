package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// Migrator copies single images from the source registry into the target registry
type Migrator struct {
	importer   registry.Importer
	sourceHost string
	targetName string
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewMigrator creates a migrator reading from sourceHost
func NewMigrator(importer registry.Importer, sourceHost, targetName string, timeout time.Duration, logger zerolog.Logger) *Migrator {
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}

	return &Migrator{
		importer:   importer,
		sourceHost: sourceHost,
		targetName: targetName,
		timeout:    timeout,
		logger:     logger.With().Str("component", "migrator").Logger(),
	}
}

// Eligible reports whether an image can be migrated. The target addresses
// images by tag, so untagged digests are left behind.
func Eligible(id registry.ImageID) bool {
	return id.Tagged()
}

// Migrate copies one image and reports the outcome. It never returns an error
// and never panics, so one image cannot stop its siblings.
func (m *Migrator) Migrate(ctx context.Context, repository string, id registry.ImageID, creds registry.Credentials) (outcome Outcome) {
	outcome = Outcome{
		Repository: repository,
		Tag:        id.Tag,
		Digest:     id.Digest,
	}

	if !Eligible(id) {
		m.logger.Info().
			Str("repository", repository).
			Str("digest", id.Digest).
			Msg("Skipping untagged image, only tagged images are migrated")
		outcome.Status = StatusSkipped
		outcome.Reason = ReasonUntagged
		return outcome
	}

	outcome.Source = registry.SourceReference(m.sourceHost, repository, id.Tag)
	outcome.Target = registry.TargetReference(repository, id.Tag)

	logger := m.logger.With().
		Str("source", outcome.Source).
		Str("target", outcome.Target).
		Logger()

	ctx, span := tracer.Start(ctx, "migration.image", trace.WithAttributes(
		AttrRepository.String(repository),
		AttrTag.String(id.Tag),
	))

	start := time.Now()
	defer func() {
		outcome.Duration = time.Since(start)

		if r := recover(); r != nil {
			outcome.Status = StatusFailed
			outcome.Reason = ReasonPanicked
			outcome.Detail = fmt.Sprint(r)
			logger.Error().Interface("panic", r).Msg("Import panicked")
		}

		span.SetAttributes(AttrStatus.String(string(outcome.Status)), AttrReason.String(outcome.Reason))
		if outcome.Status == StatusFailed {
			span.SetStatus(codes.Error, outcome.Reason)
		}
		span.End()
	}()

	logger.Info().Str("registry", m.targetName).Msg("Importing tagged image")

	importCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.importer.Import(importCtx, registry.ImportRequest{
		Source:      outcome.Source,
		Target:      outcome.Target,
		Credentials: creds,
		Force:       true,
	})
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Reason = ReasonImportFailed
		outcome.Detail = err.Error()
		logger.Error().Err(err).Msg("Failed to import image")

		if targetRepositoryMissing(err) {
			outcome.Reason = ReasonTargetRepositoryMissing
			logger.Error().Msg("Hint: the repository might not exist in the target registry")
		}
		return outcome
	}

	outcome.Status = StatusMigrated
	logger.Info().Msgf("Successfully imported as %s", outcome.Target)
	return outcome
}

func targetRepositoryMissing(err error) bool {
	return errors.Is(err, registry.ErrTargetRepositoryMissing) ||
		strings.Contains(strings.ToLower(err.Error()), "repository not found")
}
