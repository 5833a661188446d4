package migration

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const instrumentationName = "github.com/alvesdmateus/registry-migrator/internal/migration"

var tracer = otel.Tracer(instrumentationName)

// Span attribute keys
var (
	AttrRunID      = attribute.Key("migration.run_id")
	AttrRepository = attribute.Key("migration.repository")
	AttrTag        = attribute.Key("migration.tag")
	AttrStatus     = attribute.Key("migration.status")
	AttrReason     = attribute.Key("migration.reason")
)

// Observer is notified as a run progresses. Calls for images of the same
// repository may arrive concurrently.
type Observer interface {
	RepositoryStarted(repository string)
	ImageFinished(outcome Outcome)
	RunFinished(report *Report)
}

type nopObserver struct{}

func (nopObserver) RepositoryStarted(string) {}
func (nopObserver) ImageFinished(Outcome)    {}
func (nopObserver) RunFinished(*Report)      {}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObserver registers an observer for run progress
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}
