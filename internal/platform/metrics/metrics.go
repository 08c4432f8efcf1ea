package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics covers the due-rule dispatch loop.
type SchedulerMetrics struct {
	RulesProcessed prometheus.Counter
	RulesFailed    prometheus.Counter
	SchedulingLag  prometheus.Histogram
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	factory := promauto.With(reg)
	return &SchedulerMetrics{
		RulesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cratewatch",
			Subsystem: "scheduler",
			Name:      "rules_processed_total",
			Help:      "Rules successfully run by the scheduler.",
		}),
		RulesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cratewatch",
			Subsystem: "scheduler",
			Name:      "rules_failed_total",
			Help:      "Rule runs that ended in error.",
		}),
		SchedulingLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cratewatch",
			Subsystem: "scheduler",
			Name:      "lag_seconds",
			Help:      "Delay between a rule's next_run_at and its actual claim.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// ObserveProcessed is nil-safe so tests can run without a registry.
func (m *SchedulerMetrics) ObserveProcessed() {
	if m != nil {
		m.RulesProcessed.Inc()
	}
}

func (m *SchedulerMetrics) ObserveFailed() {
	if m != nil {
		m.RulesFailed.Inc()
	}
}

func (m *SchedulerMetrics) ObserveLag(seconds float64) {
	if m != nil && seconds >= 0 {
		m.SchedulingLag.Observe(seconds)
	}
}

// DeliveryMetrics covers the notification delivery worker.
type DeliveryMetrics struct {
	Delivered prometheus.Counter
	Deferred  prometheus.Counter
	Failed    prometheus.Counter
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	factory := promauto.With(reg)
	return &DeliveryMetrics{
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cratewatch",
			Subsystem: "delivery",
			Name:      "notifications_delivered_total",
			Help:      "Notifications delivered across all channels.",
		}),
		Deferred: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cratewatch",
			Subsystem: "delivery",
			Name:      "notifications_deferred_total",
			Help:      "Deliveries pushed forward by quiet hours or frequency.",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cratewatch",
			Subsystem: "delivery",
			Name:      "notifications_failed_total",
			Help:      "Notifications that exhausted retries or failed permanently.",
		}),
	}
}

func (m *DeliveryMetrics) ObserveDelivered(n int) {
	if m != nil && n > 0 {
		m.Delivered.Add(float64(n))
	}
}

func (m *DeliveryMetrics) ObserveDeferred(n int) {
	if m != nil && n > 0 {
		m.Deferred.Add(float64(n))
	}
}

func (m *DeliveryMetrics) ObserveFailed(n int) {
	if m != nil && n > 0 {
		m.Failed.Add(float64(n))
	}
}
