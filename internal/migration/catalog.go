package migration

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// Catalog enumerates the source registry and applies the listing failure policy
type Catalog struct {
	source  registry.Source
	include map[string]bool
	logger  zerolog.Logger
}

// NewCatalog creates a catalog over source. A non-empty include list restricts the repositories returned.
func NewCatalog(source registry.Source, include []string, logger zerolog.Logger) *Catalog {
	var set map[string]bool
	if len(include) > 0 {
		set = make(map[string]bool, len(include))
		for _, name := range include {
			set[name] = true
		}
	}

	return &Catalog{
		source:  source,
		include: set,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// Repositories lists every repository in the source registry
func (c *Catalog) Repositories(ctx context.Context) ([]string, error) {
	repos, err := c.source.ListRepositories(ctx)
	if err != nil {
		return nil, &CatalogError{Err: err}
	}

	if c.include == nil {
		return repos, nil
	}

	filtered := make([]string, 0, len(c.include))
	for _, repo := range repos {
		if c.include[repo] {
			filtered = append(filtered, repo)
		}
	}

	c.logger.Debug().
		Int("listed", len(repos)).
		Int("selected", len(filtered)).
		Msg("Applied repository filter")

	return filtered, nil
}

// Images lists the images of a repository. A repository that no longer exists
// has nothing to migrate, so it yields an empty list rather than an error.
func (c *Catalog) Images(ctx context.Context, repository string) ([]registry.ImageID, error) {
	images, err := c.source.ListImages(ctx, repository)
	if err != nil {
		if errors.Is(err, registry.ErrRepositoryNotFound) {
			c.logger.Warn().
				Str("repository", repository).
				Msg("Repository not found in source registry")
			return nil, nil
		}
		return nil, &CatalogError{Repository: repository, Err: err}
	}

	return images, nil
}
