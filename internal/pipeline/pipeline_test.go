package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/climate-analytics-service/internal/analysis"
	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/observability"
	"github.com/couchcryptid/climate-analytics-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockExtractor returns one queued batch (or error) per call and then blocks
// until the context is cancelled, like a reader waiting for messages.
type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
	errs    []error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.OutputEvent
	failures int
	calls    atomic.Int32
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) snapshot() []domain.OutputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutputEvent(nil), m.loaded...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestPipeline_Run_AnalysesRequests(t *testing.T) {
	analyzer, err := analysis.NewAnalyzer(domain.DefaultOptions(), discardLogger(), newTestMetrics())
	require.NoError(t, err)
	processor := analysis.NewProcessor(analyzer, analysis.EncodingJSON, discardLogger())

	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawRequest(t, "req-1", domain.KindTrend),
		makeRawRequest(t, "req-2", domain.KindClimatology),
	}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, processor, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	loaded := ldr.snapshot()
	require.Len(t, loaded, 2)
	var res domain.AnalysisResult
	require.NoError(t, json.Unmarshal(loaded[0].Value, &res))
	assert.Equal(t, "req-1", res.ID)
	assert.NotNil(t, res.Trend)
	assert.True(t, p.Ready())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesConsumed))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesProduced))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawRequest(t, "req-3", domain.KindTrend)
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.False(t, p.Ready())
	assert.True(t, committed.Load(), "poison pill is committed so it is not redelivered")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransformErrors))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawRequest(t, "req-5", domain.KindTrend)
	raw.Topic = "analysis-requests"
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, committed.Load())
}

func TestPipeline_Run_BacksOffAfterLoadFailure(t *testing.T) {
	fake := clockwork.NewFakeClock()
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{makeRawRequest(t, "first", domain.KindTrend)},
		{makeRawRequest(t, "second", domain.KindTrend)},
	}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10, pipeline.WithClock(fake))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, fake.BlockUntilContext(waitCtx, 1), "pipeline should sleep after the failed load")
	assert.False(t, p.Ready())

	fake.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return len(ldr.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []byte("second"), ldr.snapshot()[0].Key)
	assert.Equal(t, int32(2), ldr.calls.Load())
	assert.True(t, p.Ready())
}

func TestPipeline_Run_BacksOffAfterExtractFailure(t *testing.T) {
	fake := clockwork.NewFakeClock()
	ext := &mockExtractor{
		errs:    []error{errors.New("dial tcp: connection refused"), errors.New("dial tcp: connection refused")},
		batches: [][]domain.RawEvent{{makeRawRequest(t, "after-outage", domain.KindTrend)}},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10, pipeline.WithClock(fake))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()

	// First sleep is 200ms, the second doubles to 400ms.
	require.NoError(t, fake.BlockUntilContext(waitCtx, 1))
	fake.Advance(200 * time.Millisecond)
	require.NoError(t, fake.BlockUntilContext(waitCtx, 1))
	fake.Advance(399 * time.Millisecond)
	assert.Empty(t, ldr.snapshot())
	fake.Advance(time.Millisecond)

	require.Eventually(t, func() bool { return len(ldr.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

// --- helpers ---

func makeRawRequest(t *testing.T, id, kind string) domain.RawEvent {
	t.Helper()
	samples := make([]domain.Sample, 0, 24)
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range 24 {
		samples = append(samples, domain.Sample{
			Time:  start.AddDate(0, i, 0).Format(time.DateOnly),
			Value: 280 + float64(i%12) + 0.01*float64(i),
		})
	}
	data, err := json.Marshal(domain.AnalysisRequest{ID: id, Kind: kind, Units: "K", Samples: samples})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(id),
		Value: data,
	}
}
