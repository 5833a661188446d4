package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alvesdmateus/registry-migrator/internal/migration"
)

// Metrics holds the Prometheus metrics of a migration run. A CLI run has no
// scrape endpoint, so the registry is written out in the node exporter
// textfile format once the run finishes.
type Metrics struct {
	registry *prometheus.Registry

	// Image metrics
	ImagesTotal    *prometheus.CounterVec
	ImportDuration *prometheus.HistogramVec

	// Repository metrics
	RepositoriesTotal      prometheus.Counter
	RepositoryErrorsTotal  prometheus.Counter
	ProvisionWarningsTotal prometheus.Counter

	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics creates and registers all migration metrics on a private registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "registry_migrator"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ImagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_total",
				Help:      "Total number of images processed by outcome",
			},
			[]string{"status", "reason"},
		),
		ImportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_import_duration_seconds",
				Help:      "Duration of single image imports",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"status"},
		),
		RepositoriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repositories_total",
				Help:      "Total number of source repositories processed",
			},
		),
		RepositoryErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_errors_total",
				Help:      "Repositories skipped because their images could not be listed",
			},
		),
		ProvisionWarningsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provision_warnings_total",
				Help:      "Target repositories that could not be created ahead of import",
			},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of migration runs by result",
			},
			[]string{"result"},
		),
		RunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_duration_seconds",
				Help:      "Wall clock duration of the last run",
			},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RepositoryStarted counts a processed repository
func (m *Metrics) RepositoryStarted(repository string) {
	m.RepositoriesTotal.Inc()
}

// ImageFinished records one image outcome
func (m *Metrics) ImageFinished(outcome migration.Outcome) {
	m.ImagesTotal.WithLabelValues(string(outcome.Status), outcome.Reason).Inc()
	if outcome.Status != migration.StatusSkipped {
		m.ImportDuration.WithLabelValues(string(outcome.Status)).Observe(outcome.Duration.Seconds())
	}
}

// RunFinished records the run result
func (m *Metrics) RunFinished(report *migration.Report) {
	result := "completed"
	if report.Aborted {
		result = "aborted"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RepositoryErrorsTotal.Add(float64(len(report.RepositoryErrors)))
	m.ProvisionWarningsTotal.Add(float64(len(report.ProvisionWarnings)))
	m.RunDuration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	m.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
