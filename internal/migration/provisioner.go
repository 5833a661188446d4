package migration

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// Provisioner makes sure target repositories exist before images are copied into them
type Provisioner struct {
	target registry.Target
	logger zerolog.Logger
}

// NewProvisioner creates a new provisioner
func NewProvisioner(target registry.Target, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		target: target,
		logger: logger.With().Str("component", "provisioner").Logger(),
	}
}

// Ensure creates the repository if needed. An existing repository is not an error.
// Any other failure is returned as a *ProvisionWarning and must not stop the run.
func (p *Provisioner) Ensure(ctx context.Context, repository string) error {
	err := p.target.CreateRepository(ctx, repository)
	switch {
	case err == nil:
		p.logger.Debug().Str("repository", repository).Msg("Target repository ready")
		return nil
	case errors.Is(err, registry.ErrRepositoryExists):
		p.logger.Debug().Str("repository", repository).Msg("Target repository already exists")
		return nil
	default:
		return &ProvisionWarning{Repository: repository, Err: err}
	}
}
