package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RefreshMetrics instruments the bulk refresh and expiry sweep
type RefreshMetrics struct {
	refreshed   prometheus.Counter
	skipped     *prometheus.CounterVec
	duration    prometheus.Histogram
	transitions *prometheus.CounterVec
	cacheHits   prometheus.Counter
}

// NewRefreshMetrics creates and registers the metrics on reg
func NewRefreshMetrics(reg prometheus.Registerer) *RefreshMetrics {
	m := &RefreshMetrics{
		refreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "optitrack",
			Name:      "positions_refreshed_total",
			Help:      "Positions whose PNL was refreshed from a live quote.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optitrack",
			Name:      "positions_refresh_skipped_total",
			Help:      "Positions skipped during a refresh cycle, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "optitrack",
			Name:      "refresh_cycle_seconds",
			Help:      "Duration of a bulk refresh cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optitrack",
			Name:      "status_transitions_total",
			Help:      "Lifecycle transitions applied by the expiry sweep.",
		}, []string{"to"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "optitrack",
			Name:      "summary_cache_hits_total",
			Help:      "Summaries served from the cache.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.refreshed, m.skipped, m.duration, m.transitions, m.cacheHits)
	}
	return m
}

func (m *RefreshMetrics) observeRefreshed() {
	if m != nil {
		m.refreshed.Inc()
	}
}

func (m *RefreshMetrics) observeSkipped(reason string) {
	if m != nil {
		m.skipped.WithLabelValues(reason).Inc()
	}
}

func (m *RefreshMetrics) observeDuration(seconds float64) {
	if m != nil {
		m.duration.Observe(seconds)
	}
}

func (m *RefreshMetrics) observeTransition(to string) {
	if m != nil {
		m.transitions.WithLabelValues(to).Inc()
	}
}

func (m *RefreshMetrics) observeCacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}
