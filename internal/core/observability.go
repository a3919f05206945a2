package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"time"
)

// MetricsRecorder observes service operations. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, d time.Duration)
}

// SessionMetrics is optionally implemented by recorders that also track
// matching outcomes.
type SessionMetrics interface {
	ObserveMatch(newDonations int)
	ObserveOptimize(trials, swaps, score int)
}

// TraceSpan ends a traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	StartSpan(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// NopMetricsRecorder discards observations.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// NopTracer produces spans that do nothing.
type NopTracer struct{}

type nopSpan struct{}

func (nopSpan) End(error) {}

func (NopTracer) StartSpan(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, nopSpan{}
}

// ExpvarMetricsRecorder publishes per-operation counters and cumulative
// durations through the expvar registry, keeping the service observable
// without any scrape infrastructure.
type ExpvarMetricsRecorder struct {
	mu   sync.Mutex
	root *expvar.Map
}

var _ MetricsRecorder = (*ExpvarMetricsRecorder)(nil)

// NewExpvarMetricsRecorder publishes under the given expvar name. The
// name must not already be published.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	return &ExpvarMetricsRecorder{root: expvar.NewMap(name)}
}

func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.root.Add(operation+"."+outcome, 1)
	r.root.Add(operation+".duration_ns", d.Nanoseconds())
}

// JSONTraceTracer writes one JSON line per completed span, suitable for
// piping into a log collector.
type JSONTraceTracer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

var _ Tracer = (*JSONTraceTracer)(nil)

func NewJSONTraceTracer(w io.Writer) *JSONTraceTracer {
	return &JSONTraceTracer{w: w, now: time.Now}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	start     time.Time
}

func (t *JSONTraceTracer) StartSpan(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, start: t.now()}
}

func (s *jsonTraceSpan) End(err error) {
	end := s.tracer.now()
	record := map[string]any{
		"operation":   s.operation,
		"start":       s.start.UTC().Format(time.RFC3339Nano),
		"end":         end.UTC().Format(time.RFC3339Nano),
		"duration_ms": float64(end.Sub(s.start)) / float64(time.Millisecond),
	}
	if err != nil {
		record["error"] = err.Error()
	}
	payload, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		return
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	fmt.Fprintln(s.tracer.w, string(payload))
}
