package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the gateway.
type Metrics struct {
	MarkOutcomes     *prometheus.CounterVec
	MarkDuration     prometheus.Histogram
	Registrations    *prometheus.CounterVec
	DevicesBound     prometheus.Counter
	RateLimited      prometheus.Counter
	QueuePublishFail prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		MarkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presencegate_attendance_mark_total",
			Help: "Attendance mark attempts by outcome (accepted or rejection reason)",
		}, []string{"outcome"}),
		MarkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "presencegate_attendance_mark_duration_seconds",
			Help:    "Latency of the presence verification pipeline",
			Buckets: prometheus.DefBuckets,
		}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presencegate_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		DevicesBound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presencegate_devices_bound_total",
			Help: "Device bindings created",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presencegate_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		QueuePublishFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presencegate_queue_publish_failures_total",
			Help: "Domain events that could not be published",
		}),
	}
	reg.MustRegister(m.MarkOutcomes, m.MarkDuration, m.Registrations, m.DevicesBound, m.RateLimited, m.QueuePublishFail)
	return m
}

// NewUnregistered returns collectors that are not attached to any registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
