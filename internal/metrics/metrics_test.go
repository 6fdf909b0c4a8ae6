package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("booking", prometheus.NewRegistry())

	c.ObserveBooking(OutcomeBooked)
	c.ObserveBooking(OutcomeConflict)
	c.ObserveBooking(OutcomeConflict)
	c.ObserveTransition("CANCELLED", false)
	c.ObserveLock(LockDegraded)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.BookingsTotal.WithLabelValues(OutcomeBooked)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BookingsTotal.WithLabelValues(OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransitionsTotal.WithLabelValues("CANCELLED", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LockAcquisitions.WithLabelValues(LockDegraded)))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveBooking(OutcomeBooked)
	c.ObserveTransition("BOOKED", true)
	c.ObserveLock(LockAcquired)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("booking", prometheus.NewRegistry())
	c.ObserveBooking(OutcomeBooked)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking_scheduling_bookings_total")
}
