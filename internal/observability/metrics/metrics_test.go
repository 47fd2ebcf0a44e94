package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveBooking(OutcomeBooked)
	m.ObserveBooking(OutcomeConflict)
	m.ObserveWebhook("checkout.session.completed", "completed")
	m.ObservePayment("paid")
	m.ObserveWebhookLatency("checkout.session.completed", 0.2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 4 {
		t.Fatalf("gathered %d metric families, want 4", len(families))
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking(OutcomeError)
	m.ObserveWebhook("event", "failed")
	m.ObservePayment("refunded")
	m.ObserveWebhookLatency("event", 0.1)
}
