package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codekiln/langstar/internal/model"
)

// PollMetrics records revision polling activity. It satisfies
// deployment.Observer.
type PollMetrics struct {
	statuses  *prometheus.CounterVec
	transient prometheus.Counter
	waits     *prometheus.HistogramVec
}

// NewPollMetrics creates the collectors and registers them with reg.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "langstar",
			Name:      "revision_status_observations_total",
			Help:      "Revision statuses observed while polling.",
		}, []string{"status"}),
		transient: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "langstar",
			Name:      "revision_poll_transient_errors_total",
			Help:      "Control plane fetches that failed with a retryable error.",
		}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "langstar",
			Name:      "revision_wait_seconds",
			Help:      "Time spent waiting for a revision, by outcome.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 900, 1800, 3600},
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.statuses, m.transient, m.waits)
	return m
}

func (m *PollMetrics) ObserveStatus(status model.RevisionStatus) {
	m.statuses.WithLabelValues(string(status)).Inc()
}

func (m *PollMetrics) ObserveTransientError() {
	m.transient.Inc()
}

func (m *PollMetrics) ObserveWait(outcome string, elapsed time.Duration) {
	m.waits.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
