package migration

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

type recordingObserver struct {
	mu           sync.Mutex
	repositories []string
	outcomes     int
	finished     *Report
}

func (r *recordingObserver) RepositoryStarted(repository string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repositories = append(r.repositories, repository)
}

func (r *recordingObserver) ImageFinished(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes++
}

func (r *recordingObserver) RunFinished(report *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = report
}

func TestRun_NotifiesObserver(t *testing.T) {
	source := newFakeSource(
		[]string{"app", "api"},
		map[string][]registry.ImageID{
			"app": {{Tag: "v1", Digest: "sha1"}, {Digest: "sha2"}},
			"api": {{Tag: "v1", Digest: "sha3"}},
		},
	)
	target := newFakeTarget(source)
	observer := &recordingObserver{}

	orch := NewOrchestrator(validSettings(), source, target, target, zerolog.Nop(), WithObserver(observer))
	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"app", "api"}, observer.repositories)
	assert.Equal(t, 3, observer.outcomes)
	assert.Same(t, report, observer.finished)
}

func TestRun_NotifiesObserverOnAbort(t *testing.T) {
	source := newFakeSource(nil, nil)
	source.authErr = errors.New("expired")
	target := newFakeTarget(source)
	observer := &recordingObserver{}

	orch := NewOrchestrator(validSettings(), source, target, target, zerolog.Nop(), WithObserver(observer))
	report, err := orch.Run(context.Background())
	require.Error(t, err)

	require.NotNil(t, observer.finished)
	assert.True(t, observer.finished.Aborted)
	assert.Same(t, report, observer.finished)
}

func TestWithObserver_NilKeepsDefault(t *testing.T) {
	source := newFakeSource(nil, nil)
	orch := NewOrchestrator(validSettings(), source, newFakeTarget(source), nil, zerolog.Nop(), WithObserver(nil))
	assert.Equal(t, nopObserver{}, orch.observer)
}

func TestRun_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	source := newFakeSource(
		[]string{"app"},
		map[string][]registry.ImageID{"app": {{Tag: "v1", Digest: "sha1"}, {Tag: "v2", Digest: "sha2"}}},
	)
	target := newFakeTarget(source)
	target.importErr["app:v2"] = errors.New("manifest unknown")

	_, err := newTestOrchestrator(validSettings(), source, target).Run(context.Background())
	require.NoError(t, err)

	spans := map[string]int{}
	var failed int
	for _, span := range recorder.Ended() {
		spans[span.Name()]++
		if span.Name() == "migration.image" && span.Status().Code == codes.Error {
			failed++
		}
	}

	assert.Equal(t, map[string]int{"migration.run": 1, "migration.repository": 1, "migration.image": 2}, spans)
	assert.Equal(t, 1, failed)
}

type panickingObserver struct{}

func (panickingObserver) RepositoryStarted(string) { panic("repository hook") }
func (panickingObserver) ImageFinished(Outcome)    { panic("image hook") }
func (panickingObserver) RunFinished(*Report)      { panic("run hook") }

func TestRun_PanickingObserverDoesNotStopRun(t *testing.T) {
	source := newFakeSource(
		[]string{"app"},
		map[string][]registry.ImageID{"app": {{Tag: "v1", Digest: "sha1"}, {Tag: "v2", Digest: "sha2"}}},
	)
	target := newFakeTarget(source)

	settings := validSettings()
	settings.Workers = 2
	orch := NewOrchestrator(settings, source, target, target, zerolog.Nop(), WithObserver(panickingObserver{}))

	var report *Report
	var err error
	require.NotPanics(t, func() { report, err = orch.Run(context.Background()) })
	require.NoError(t, err)
	assert.Equal(t, Summary{Migrated: 2, Total: 2}, report.Summary())
}

func TestRun_AbortLogsCompletedCounts(t *testing.T) {
	source := newFakeSource([]string{"app", "api"}, map[string][]registry.ImageID{
		"app": {{Tag: "v1", Digest: "sha1"}, {Digest: "sha2"}},
		"api": {{Tag: "v1", Digest: "sha3"}},
	})
	target := newFakeTarget(source)

	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	orch := NewOrchestrator(validSettings(), source, target, importerFunc(func(ictx context.Context, req registry.ImportRequest) error {
		cancel()
		return target.Import(ictx, req)
	}), zerolog.New(&buf))

	_, err := orch.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	logs := buf.String()
	assert.Contains(t, logs, `"level":"fatal"`)
	assert.Contains(t, logs, `"migrated":1`)
	assert.Contains(t, logs, `"skipped":1`)
	assert.Contains(t, logs, `"failed":0`)
	assert.Contains(t, logs, `"total":2`)
	assert.Contains(t, logs, "completed before the failure: 1 migrated, 1 skipped, 0 failed (2 total)")
}
