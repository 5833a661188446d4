package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvesdmateus/registry-migrator/internal/migration"
)

func TestNewMetrics(t *testing.T) {
	metrics := NewMetrics("test")

	assert.NotNil(t, metrics)
	assert.NotNil(t, metrics.Registry())
	assert.NotNil(t, metrics.ImagesTotal)
	assert.NotNil(t, metrics.ImportDuration)
	assert.NotNil(t, metrics.RepositoriesTotal)
	assert.NotNil(t, metrics.RunsTotal)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Private registries never collide on duplicate registration
	first := NewMetrics("")
	second := NewMetrics("")
	assert.NotSame(t, first.Registry(), second.Registry())
}

func TestMetrics_ImageFinished(t *testing.T) {
	metrics := NewMetrics("test_images")

	metrics.ImageFinished(migration.Outcome{Status: migration.StatusMigrated, Duration: 3 * time.Second})
	metrics.ImageFinished(migration.Outcome{Status: migration.StatusMigrated, Duration: time.Second})
	metrics.ImageFinished(migration.Outcome{Status: migration.StatusSkipped, Reason: migration.ReasonUntagged})
	metrics.ImageFinished(migration.Outcome{Status: migration.StatusFailed, Reason: migration.ReasonImportFailed})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ImagesTotal.WithLabelValues("migrated", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ImagesTotal.WithLabelValues("skipped", "untagged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ImagesTotal.WithLabelValues("failed", "import failed")))

	// Skipped images never reach an importer, so they have no duration
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.ImportDuration))
}

func TestMetrics_RunFinished(t *testing.T) {
	metrics := NewMetrics("test_runs")
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	metrics.RepositoryStarted("app")
	metrics.RepositoryStarted("api")
	metrics.RunFinished(&migration.Report{
		StartedAt:         started,
		FinishedAt:        started.Add(90 * time.Second),
		ProvisionWarnings: []string{"app"},
		RepositoryErrors:  []migration.RepositoryError{{Repository: "api", Error: "throttled"}},
	})
	metrics.RunFinished(&migration.Report{Aborted: true, StartedAt: started, FinishedAt: started})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RepositoriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RepositoryErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProvisionWarningsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("aborted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RunDuration), "the last run wins")
	assert.Equal(t, float64(started.Unix()), testutil.ToFloat64(metrics.LastRunTimestamp))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	metrics := NewMetrics("test_textfile")
	metrics.ImageFinished(migration.Outcome{Status: migration.StatusMigrated, Duration: time.Second})

	path := filepath.Join(t.TempDir(), "migration.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `test_textfile_images_total{reason="",status="migrated"} 1`)
}

func TestMetrics_WriteTextfile_BadPath(t *testing.T) {
	metrics := NewMetrics("test_badpath")
	err := metrics.WriteTextfile(filepath.Join(t.TempDir(), "missing", "migration.prom"))
	assert.Error(t, err)
}

func TestMetrics_ImplementsObserver(t *testing.T) {
	var _ migration.Observer = NewMetrics("test_observer")
}
