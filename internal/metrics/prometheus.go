// Package metrics provides a Prometheus implementation of the core
// metrics interfaces.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"giftmatch/internal/core"
)

// Recorder exports operation and session metrics to a Prometheus
// registry.
type Recorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	donations  prometheus.Counter
	trials     prometheus.Counter
	swaps      prometheus.Counter
	score      prometheus.Gauge
}

var (
	_ core.MetricsRecorder = (*Recorder)(nil)
	_ core.SessionMetrics  = (*Recorder)(nil)
)

// NewRecorder registers the collectors with reg under the given
// namespace and returns the recorder. Registration panics on duplicate
// collectors, matching prometheus.MustRegister semantics.
func NewRecorder(reg prometheus.Registerer, namespace string) *Recorder {
	if namespace == "" {
		namespace = "giftmatch"
	}
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "success"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_created_total",
			Help:      "Donations created by the matcher.",
		}),
		trials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_trials_total",
			Help:      "Optimizer swap trials attempted.",
		}),
		swaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_swaps_total",
			Help:      "Optimizer swaps accepted.",
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assignment_score",
			Help:      "Score of the assignment after the last optimizer run.",
		}),
	}
	reg.MustRegister(r.operations, r.durations, r.donations, r.trials, r.swaps, r.score)
	return r
}

func (r *Recorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	r.operations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	r.durations.WithLabelValues(operation).Observe(d.Seconds())
}

func (r *Recorder) ObserveMatch(newDonations int) {
	r.donations.Add(float64(newDonations))
}

func (r *Recorder) ObserveOptimize(trials, swaps, score int) {
	r.trials.Add(float64(trials))
	r.swaps.Add(float64(swaps))
	r.score.Set(float64(score))
}
