package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records the behavior of the payment settlement pipeline.
type SettlementMetrics struct {
	duration   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

// NewSettlementMetrics registers the settlement metrics on the provided
// registerer. A nil registerer yields a no-op instance.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_settlement_duration_seconds",
		Help:    "Duration of payment settlement attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlement_total",
		Help: "Settlement attempts by outcome.",
	}, []string{"outcome"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payment_queue_depth",
		Help: "Number of payments waiting to be settled.",
	})
	reg.MustRegister(duration, outcomes, queueDepth)
	return &SettlementMetrics{
		duration:   duration,
		outcomes:   outcomes,
		queueDepth: queueDepth,
	}
}

// ObserveSettlement records one settlement attempt with its outcome label.
func (s *SettlementMetrics) ObserveSettlement(outcome string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	s.duration.WithLabelValues(label).Observe(duration.Seconds())
	s.outcomes.WithLabelValues(label).Inc()
}

// SetQueueDepth publishes the current number of queued payments.
func (s *SettlementMetrics) SetQueueDepth(depth int) {
	if s == nil || s.queueDepth == nil {
		return
	}
	s.queueDepth.Set(float64(depth))
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
