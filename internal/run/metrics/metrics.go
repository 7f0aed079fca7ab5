package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the run module.
type Metrics struct {
	// Completed/aborted runs by status
	RunsTotal *prometheus.CounterVec

	// Full pipeline duration (ingest excluded)
	RunDuration prometheus.Histogram

	// Audit events emitted by kind
	EventsEmitted *prometheus.CounterVec

	// Observation rows skipped because the participant is unknown
	OrphanRows *prometheus.CounterVec
}

// New creates a Metrics instance with all run module metrics registered.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinops_runs_total",
			Help: "Total pipeline runs by terminal status",
		}, []string{"status"}),

		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clinops_run_duration_seconds",
			Help:    "Duration of full pipeline runs",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinops_audit_events_total",
			Help: "Audit events emitted by event kind",
		}, []string{"kind"}),

		OrphanRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinops_orphan_rows_total",
			Help: "Observation rows skipped for unknown participants, by domain",
		}, []string{"domain"}),
	}
}

// IncrementRuns records a run's terminal status.
func (m *Metrics) IncrementRuns(status string) {
	if m != nil {
		m.RunsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveRunDuration records how long a pipeline run took.
func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}

// IncrementEvents records emitted audit events for a kind.
func (m *Metrics) IncrementEvents(kind string, n int) {
	if m != nil && n > 0 {
		m.EventsEmitted.WithLabelValues(kind).Add(float64(n))
	}
}

// IncrementOrphans records skipped orphan rows for a domain.
func (m *Metrics) IncrementOrphans(domain string, n int) {
	if m != nil && n > 0 {
		m.OrphanRows.WithLabelValues(domain).Add(float64(n))
	}
}
