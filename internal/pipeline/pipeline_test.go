package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/couchcryptid/hurdat-etl/internal/observability"
	"github.com/couchcryptid/hurdat-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	lines []domain.RawLine
	pos   int
	err   error
}

func (m *mockExtractor) ExtractLines(_ context.Context, n int) ([]domain.RawLine, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.pos >= len(m.lines) {
		return nil, io.EOF
	}
	end := min(m.pos+n, len(m.lines))
	batch := m.lines[m.pos:end]
	m.pos = end
	return batch, nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, profile domain.Profile, storms []domain.Storm) (pipeline.ProfileResult, error) {
	if m.err != nil {
		return pipeline.ProfileResult{}, m.err
	}
	var res pipeline.ProfileResult
	for _, s := range storms {
		res.Summaries = append(res.Summaries, domain.StormSummary{ID: s.ID, Profile: profile.Name})
	}
	return res, nil
}

type mockLoader struct {
	failures atomic.Int32 // fail this many calls before succeeding
	calls    atomic.Int32
	batches  [][]domain.StormSummary
}

func (m *mockLoader) LoadBatch(_ context.Context, summaries []domain.StormSummary) error {
	m.calls.Add(1)
	if m.failures.Load() > 0 {
		m.failures.Add(-1)
		return errors.New("sink unavailable")
	}
	m.batches = append(m.batches, summaries)
	return nil
}

func (m *mockLoader) loaded() []domain.StormSummary {
	var all []domain.StormSummary
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh set of collectors to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleLines(t *testing.T) []domain.RawLine {
	t.Helper()
	data, err := os.ReadFile("../../testdata/hurdat_sample.txt")
	require.NoError(t, err)
	var lines []domain.RawLine
	for i, text := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		lines = append(lines, domain.RawLine{Num: i + 1, Text: text})
	}
	return lines
}

var allProfile = domain.Profile{Name: "all", NumMeas: 4}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{lines: sampleLines(t)}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), metrics, pipeline.Options{BatchSize: 2})
	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)

	assert.Equal(t, 13, report.LinesRead)
	assert.Equal(t, 3, report.StormsAssembled)
	assert.Zero(t, report.EmptyStorms)
	assert.Zero(t, report.DayCountMismatches)
	require.Len(t, report.Profiles, 1)
	assert.Equal(t, 3, report.Profiles[0].Loaded)

	require.Len(t, ldr.batches, 2)
	assert.Len(t, ldr.batches[0], 2)
	assert.Len(t, ldr.batches[1], 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))

	assert.Equal(t, 13.0, testutil.ToFloat64(metrics.LinesRead))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SummariesLoaded.WithLabelValues("all")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_EveryLoaderReceivesEveryBatch(t *testing.T) {
	first, second := &mockLoader{}, &mockLoader{}

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{},
		[]pipeline.BatchLoader{first, second}, discardLogger(), newTestMetrics(), pipeline.Options{})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile, {Name: "second", NumMeas: 2}})
	require.NoError(t, err)

	assert.Len(t, first.loaded(), 6)
	assert.Equal(t, first.loaded(), second.loaded())
}

func TestPipeline_Run_MalformedLineIsFatal(t *testing.T) {
	lines := sampleLines(t)
	lines[2].Text = strings.Replace(lines[2].Text, " 80", " 8X", 1)
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{lines: lines}, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), newTestMetrics(), pipeline.Options{})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.LineNum)
	assert.Empty(t, ldr.batches)
}

func TestPipeline_Run_SkipMalformed(t *testing.T) {
	lines := sampleLines(t)
	lines[2].Text = strings.Replace(lines[2].Text, " 80", " 8X", 1)
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{lines: lines}, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), metrics, pipeline.Options{SkipMalformed: true})

	report, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)
	assert.Equal(t, 1, report.MalformedSkipped)
	assert.Equal(t, 3, report.StormsAssembled)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MalformedLines))
}

func TestPipeline_Run_MalformedStreamAlwaysFatal(t *testing.T) {
	lines := sampleLines(t)[1:] // drop the first header

	p := pipeline.New(&mockExtractor{lines: lines}, &mockTransformer{}, []pipeline.BatchLoader{&mockLoader{}}, discardLogger(), newTestMetrics(), pipeline.Options{SkipMalformed: true})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	assert.True(t, errors.Is(err, domain.ErrMalformedStream))
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	ext := &mockExtractor{err: errors.New("disk gone")}

	p := pipeline.New(ext, &mockTransformer{}, nil, discardLogger(), newTestMetrics(), pipeline.Options{})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract lines: disk gone")
}

func TestPipeline_Run_TransformError(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{err: errors.New("bad profile")},
		[]pipeline.BatchLoader{ldr}, discardLogger(), newTestMetrics(), pipeline.Options{})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform profile all")
	assert.Empty(t, ldr.batches)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), newTestMetrics(), pipeline.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := p.Run(ctx, []domain.Profile{allProfile})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.batches)
}

func TestPipeline_Run_LoadRetry(t *testing.T) {
	ldr := &mockLoader{}
	ldr.failures.Store(2)
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), metrics,
		pipeline.Options{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})

	report, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Profiles[0].Loaded)
	assert.Equal(t, int32(3), ldr.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LoadErrors))
}

func TestPipeline_Run_LoadGivesUp(t *testing.T) {
	ldr := &mockLoader{}
	ldr.failures.Store(100)

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), newTestMetrics(),
		pipeline.Options{MaxLoadAttempts: 3, InitialBackoff: time.Millisecond})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Equal(t, int32(3), ldr.calls.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadRetryStopsOnCancel(t *testing.T) {
	ldr := &mockLoader{}
	ldr.failures.Store(100)

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{}, []pipeline.BatchLoader{ldr}, discardLogger(), newTestMetrics(),
		pipeline.Options{InitialBackoff: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Run(ctx, []domain.Profile{allProfile})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPipeline_LastReport(t *testing.T) {
	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{}, []pipeline.BatchLoader{&mockLoader{}}, discardLogger(), newTestMetrics(), pipeline.Options{})

	_, ok := p.LastReport()
	assert.False(t, ok)

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)

	last, ok := p.LastReport()
	require.True(t, ok)
	assert.Equal(t, 3, last.StormsAssembled)
	assert.Empty(t, last.Err)
}

func TestPipeline_LastReport_RecordsFailure(t *testing.T) {
	ext := &mockExtractor{err: errors.New("disk gone")}
	p := pipeline.New(ext, &mockTransformer{}, nil, discardLogger(), newTestMetrics(), pipeline.Options{})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.Error(t, err)

	last, ok := p.LastReport()
	require.True(t, ok)
	assert.Contains(t, last.Err, "disk gone")
}

type mockObservationLoader struct {
	mockLoader
	obsFailures atomic.Int32
	records     []domain.ObservationRecord
}

func (m *mockObservationLoader) LoadObservations(_ context.Context, records []domain.ObservationRecord) error {
	if m.obsFailures.Load() > 0 {
		m.obsFailures.Add(-1)
		return errors.New("sink unavailable")
	}
	m.records = append(m.records, records...)
	return nil
}

func TestPipeline_Run_ExportsObservations(t *testing.T) {
	obs := &mockObservationLoader{}
	plain := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{},
		[]pipeline.BatchLoader{obs, plain}, discardLogger(), metrics,
		pipeline.Options{BatchSize: 10, ExportObservations: true})

	report, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)

	assert.Equal(t, 23, report.ObservationsLoaded)
	require.Len(t, obs.records, 23)
	assert.Equal(t, 188601, obs.records[0].StormID)
	assert.Equal(t, domain.TropicalStorm, obs.records[0].Category)
	assert.Equal(t, 188701, obs.records[22].StormID)
	assert.Len(t, obs.loaded(), 3, "summaries still reach the same sink")
	assert.Len(t, plain.loaded(), 3)
	assert.Equal(t, 23.0, testutil.ToFloat64(metrics.ObservationsLoaded))
}

func TestPipeline_Run_ObservationExportDisabled(t *testing.T) {
	obs := &mockObservationLoader{}

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{},
		[]pipeline.BatchLoader{obs}, discardLogger(), newTestMetrics(), pipeline.Options{})

	report, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)
	assert.Zero(t, report.ObservationsLoaded)
	assert.Empty(t, obs.records)
}

func TestPipeline_Run_ObservationExportRetries(t *testing.T) {
	obs := &mockObservationLoader{}
	obs.obsFailures.Store(1)
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{},
		[]pipeline.BatchLoader{obs}, discardLogger(), metrics,
		pipeline.Options{ExportObservations: true, InitialBackoff: time.Millisecond})

	report, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.NoError(t, err)
	assert.Equal(t, 23, report.ObservationsLoaded)
	assert.Len(t, obs.records, 23)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoadErrors))
}

func TestPipeline_Run_ObservationExportGivesUp(t *testing.T) {
	obs := &mockObservationLoader{}
	obs.obsFailures.Store(100)

	p := pipeline.New(&mockExtractor{lines: sampleLines(t)}, &mockTransformer{},
		[]pipeline.BatchLoader{obs}, discardLogger(), newTestMetrics(),
		pipeline.Options{ExportObservations: true, MaxLoadAttempts: 2, InitialBackoff: time.Millisecond})

	_, err := p.Run(context.Background(), []domain.Profile{allProfile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load observations: giving up after 2 attempts")
	assert.Empty(t, obs.batches, "profiles do not run after a failed export")
}
