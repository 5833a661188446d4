package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

type importerFunc func(ctx context.Context, req registry.ImportRequest) error

func (f importerFunc) Import(ctx context.Context, req registry.ImportRequest) error {
	return f(ctx, req)
}

var pullCreds = registry.Credentials{Username: "AWS", Secret: "pull-secret"}

func newTestMigrator(importer registry.Importer) *Migrator {
	return NewMigrator(importer, sourceHost, "myregistry", time.Minute, zerolog.Nop())
}

func TestMigrator_UntaggedAlwaysSkipped(t *testing.T) {
	calls := 0
	m := newTestMigrator(importerFunc(func(ctx context.Context, req registry.ImportRequest) error {
		calls++
		return nil
	}))

	for _, digest := range []string{"", "sha256:abc", "sha256:0000000000000000", "not-even-a-digest"} {
		t.Run(fmt.Sprintf("digest %q", digest), func(t *testing.T) {
			outcome := m.Migrate(context.Background(), "app", registry.ImageID{Digest: digest}, pullCreds)

			assert.Equal(t, StatusSkipped, outcome.Status)
			assert.Equal(t, ReasonUntagged, outcome.Reason)
			assert.Equal(t, digest, outcome.Digest)
		})
	}

	assert.Zero(t, calls, "untagged images never reach the importer")
}

func TestMigrator_Success(t *testing.T) {
	var got registry.ImportRequest
	var hadDeadline bool
	m := newTestMigrator(importerFunc(func(ctx context.Context, req registry.ImportRequest) error {
		got = req
		_, hadDeadline = ctx.Deadline()
		return nil
	}))

	outcome := m.Migrate(context.Background(), "app", registry.ImageID{Tag: "v1", Digest: "sha256:1"}, pullCreds)

	assert.Equal(t, StatusMigrated, outcome.Status)
	assert.Equal(t, sourceHost+"/app:v1", outcome.Source)
	assert.Equal(t, "app:v1", outcome.Target)
	assert.Equal(t, registry.ImportRequest{
		Source:      sourceHost + "/app:v1",
		Target:      "app:v1",
		Credentials: pullCreds,
		Force:       true,
	}, got)
	assert.True(t, hadDeadline, "each import is bounded by a timeout")
	assert.NoError(t, outcome.Err())
}

func TestMigrator_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{
			name:       "generic remote error",
			err:        errors.New("manifest unknown"),
			wantReason: ReasonImportFailed,
		},
		{
			name:       "sentinel target repository missing",
			err:        fmt.Errorf("import: %w", registry.ErrTargetRepositoryMissing),
			wantReason: ReasonTargetRepositoryMissing,
		},
		{
			name:       "error text mentions missing repository",
			err:        errors.New("Error: Repository Not Found in registry"),
			wantReason: ReasonTargetRepositoryMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMigrator(importerFunc(func(ctx context.Context, req registry.ImportRequest) error {
				return tt.err
			}))

			outcome := m.Migrate(context.Background(), "app", registry.ImageID{Tag: "v1", Digest: "sha256:1"}, pullCreds)

			assert.Equal(t, StatusFailed, outcome.Status)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			assert.Equal(t, tt.err.Error(), outcome.Detail)

			var failure *MigrationFailure
			require.ErrorAs(t, outcome.Err(), &failure)
			assert.Equal(t, "v1", failure.Tag)
		})
	}
}

func TestMigrator_RecoversPanics(t *testing.T) {
	m := newTestMigrator(importerFunc(func(ctx context.Context, req registry.ImportRequest) error {
		panic("nil map write")
	}))

	outcome := m.Migrate(context.Background(), "app", registry.ImageID{Tag: "v1", Digest: "sha256:1"}, pullCreds)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, ReasonPanicked, outcome.Reason)
	assert.Equal(t, "nil map write", outcome.Detail)
}

func TestNewMigrator_DefaultTimeout(t *testing.T) {
	m := NewMigrator(nil, sourceHost, "myregistry", 0, zerolog.Nop())
	assert.Equal(t, DefaultImportTimeout, m.timeout)
}

func TestProvisioner_Ensure(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		target := newFakeTarget(newFakeSource(nil, nil))
		p := NewProvisioner(target, zerolog.Nop())

		require.NoError(t, p.Ensure(context.Background(), "app"))
		reposOnce, tagsOnce := target.snapshot()

		require.NoError(t, p.Ensure(context.Background(), "app"))
		reposTwice, tagsTwice := target.snapshot()

		assert.Equal(t, reposOnce, reposTwice)
		assert.Equal(t, tagsOnce, tagsTwice)
		assert.Equal(t, map[string]bool{"app": true}, reposTwice)
	})

	t.Run("failure is a warning", func(t *testing.T) {
		target := newFakeTarget(newFakeSource(nil, nil))
		target.createErr["app"] = errors.New("AuthorizationFailed")
		p := NewProvisioner(target, zerolog.Nop())

		err := p.Ensure(context.Background(), "app")
		var warning *ProvisionWarning
		require.ErrorAs(t, err, &warning)
		assert.Equal(t, "app", warning.Repository)
		assert.False(t, IsFatal(err))
	})
}

func TestCatalog(t *testing.T) {
	source := newFakeSource(
		[]string{"app", "api", "ghost", "broken"},
		map[string][]registry.ImageID{"app": {{Tag: "v1", Digest: "sha256:1"}}},
	)
	source.notFound["ghost"] = true
	source.listErr["broken"] = errors.New("throttled")

	t.Run("not found is empty", func(t *testing.T) {
		images, err := NewCatalog(source, nil, zerolog.Nop()).Images(context.Background(), "ghost")
		assert.NoError(t, err)
		assert.Empty(t, images)
	})

	t.Run("other errors are catalog errors", func(t *testing.T) {
		_, err := NewCatalog(source, nil, zerolog.Nop()).Images(context.Background(), "broken")
		var catalogErr *CatalogError
		require.ErrorAs(t, err, &catalogErr)
		assert.Equal(t, "broken", catalogErr.Repository)
		assert.False(t, IsFatal(err))
	})

	t.Run("repository list error is fatal", func(t *testing.T) {
		failing := newFakeSource(nil, nil)
		failing.reposErr = errors.New("access denied")

		_, err := NewCatalog(failing, nil, zerolog.Nop()).Repositories(context.Background())
		var catalogErr *CatalogError
		require.ErrorAs(t, err, &catalogErr)
		assert.True(t, IsFatal(err))
	})

	t.Run("include filter keeps source order", func(t *testing.T) {
		repos, err := NewCatalog(source, []string{"api", "app", "unknown"}, zerolog.Nop()).Repositories(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"app", "api"}, repos)
	})
}
