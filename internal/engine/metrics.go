package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the engine's analytics sink.
type Metrics struct {
	CatchUpRuns     *prometheus.CounterVec
	CatchUpDuration prometheus.Histogram
	RollupsWritten  *prometheus.CounterVec
	WalkFailures    *prometheus.CounterVec
	TimerArmed      prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CatchUpRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "engine",
			Name:      "catchup_runs_total",
			Help:      "Catch-up runs by trigger source and outcome (completed, skipped).",
		}, []string{"source", "outcome"}),
		CatchUpDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cadence",
			Subsystem: "engine",
			Name:      "catchup_duration_seconds",
			Help:      "Duration of catch-up runs that acquired the run guard.",
			Buckets:   prometheus.DefBuckets,
		}),
		RollupsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "engine",
			Name:      "rollups_written_total",
			Help:      "Rollups upserted by source.",
		}, []string{"source"}),
		WalkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "engine",
			Name:      "walk_failures_total",
			Help:      "Per-standard catch-up walks aborted, by error code.",
		}, []string{"code"}),
		TimerArmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "engine",
			Name:      "boundary_timer_armed_total",
			Help:      "Times the boundary timer was armed.",
		}),
	}
}
