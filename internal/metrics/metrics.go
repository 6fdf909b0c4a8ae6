package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes.
const (
	OutcomeBooked   = "booked"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Doctor lock outcomes.
const (
	LockAcquired = "acquired"
	LockBusy     = "busy"
	LockDegraded = "degraded"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BookingsTotal    *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	LockAcquisitions *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers every metric on reg. Passing a fresh registry keeps
// tests isolated from the process-wide default one.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),

		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "status_transitions_total",
			Help:      "Appointment status changes by target status and whether a row was affected.",
		}, []string{"status", "affected"}),

		LockAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "doctor_lock_total",
			Help:      "Doctor booking lock attempts by outcome. Non-zero degraded means Redis is failing.",
		}, []string{"outcome"}),

		gatherer: reg,
	}
}

func (c *Collector) ObserveBooking(outcome string) {
	if c == nil {
		return
	}
	c.BookingsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveTransition(status string, affected bool) {
	if c == nil {
		return
	}
	a := "false"
	if affected {
		a = "true"
	}
	c.TransitionsTotal.WithLabelValues(status, a).Inc()
}

func (c *Collector) ObserveLock(outcome string) {
	if c == nil {
		return
	}
	c.LockAcquisitions.WithLabelValues(outcome).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
