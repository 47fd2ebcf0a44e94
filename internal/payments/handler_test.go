package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/clinic-booking-platform/internal/appointments"
	"github.com/wolfman30/clinic-booking-platform/internal/identity"
)

type stubReader struct {
	appt *appointments.Appointment
	err  error
}

func (s *stubReader) GetByID(_ context.Context, _ int64) (*appointments.Appointment, error) {
	return s.appt, s.err
}

type stubCheckout struct {
	params *CheckoutParams
	err    error
}

func (s *stubCheckout) CreateCheckoutSession(_ context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.params = &params
	return &CheckoutResponse{URL: "https://checkout.stripe.com/pay/cs_1", ProviderID: "cs_1"}, nil
}

func pendingAppointment() *appointments.Appointment {
	return &appointments.Appointment{
		ID:            101,
		PatientID:     1,
		ClinicianID:   5,
		Status:        appointments.StatusPendingPayment,
		Type:          appointments.TypeInitial,
		PaymentStatus: appointments.PaymentUnpaid,
	}
}

func postCheckout(t *testing.T, h *CheckoutHandler, caller *identity.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/checkout", &buf)
	if caller != nil {
		req = req.WithContext(identity.WithUser(req.Context(), *caller))
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestCheckoutHandler(t *testing.T) {
	checkout := &stubCheckout{}
	h := NewCheckoutHandler(&stubReader{appt: pendingAppointment()}, checkout, nil)
	patient := &identity.User{ID: 1, Role: identity.RolePatient, Email: "pat@example.com"}

	rec := postCheckout(t, h, patient, map[string]any{"appointmentId": 101})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		URL         string `json:"url"`
		AmountCents int64  `json:"amountCents"`
		Product     string `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.URL == "" || resp.AmountCents != 15000 || resp.Product != "INITIAL_CONSULTATION" {
		t.Fatalf("resp = %+v", resp)
	}
	if checkout.params.CustomerEmail != "pat@example.com" {
		t.Errorf("customer email = %q", checkout.params.CustomerEmail)
	}
}

func TestCheckoutHandlerBulkBilled(t *testing.T) {
	checkout := &stubCheckout{}
	h := NewCheckoutHandler(&stubReader{appt: pendingAppointment()}, checkout, nil)
	patient := &identity.User{ID: 1, Role: identity.RolePatient}

	rec := postCheckout(t, h, patient, map[string]any{"appointmentId": 101, "bulkBilled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if checkout.params.Product.Code != "BULK_BILLED_CONSULTATION" || checkout.params.Product.AmountCents != 0 {
		t.Fatalf("product = %+v", checkout.params.Product)
	}
}

func TestCheckoutHandlerRejections(t *testing.T) {
	patient := &identity.User{ID: 1, Role: identity.RolePatient}

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewCheckoutHandler(&stubReader{appt: pendingAppointment()}, &stubCheckout{}, nil)
		rec := postCheckout(t, h, nil, map[string]any{"appointmentId": 101})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("not owner", func(t *testing.T) {
		h := NewCheckoutHandler(&stubReader{appt: pendingAppointment()}, &stubCheckout{}, nil)
		other := &identity.User{ID: 2, Role: identity.RolePatient}
		rec := postCheckout(t, h, other, map[string]any{"appointmentId": 101})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("not pending payment", func(t *testing.T) {
		appt := pendingAppointment()
		appt.Status = appointments.StatusScheduled
		h := NewCheckoutHandler(&stubReader{appt: appt}, &stubCheckout{}, nil)
		rec := postCheckout(t, h, patient, map[string]any{"appointmentId": 101})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		h := NewCheckoutHandler(&stubReader{err: appointments.ErrNotFound}, &stubCheckout{}, nil)
		rec := postCheckout(t, h, patient, map[string]any{"appointmentId": 404})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestProductFor(t *testing.T) {
	if p := ProductFor(appointments.TypeInitial, false); p.AmountCents != 15000 {
		t.Errorf("initial = %+v", p)
	}
	if p := ProductFor(appointments.TypeFollowUp, false); p.AmountCents != 7500 {
		t.Errorf("follow-up = %+v", p)
	}
	if p := ProductFor(appointments.TypeEmergency, false); p.AmountCents != 15000 {
		t.Errorf("emergency = %+v", p)
	}
	if p := ProductFor(appointments.TypeInitial, true); p.AmountCents != 0 {
		t.Errorf("bulk billed = %+v", p)
	}
}
