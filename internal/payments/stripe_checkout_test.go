package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestCreateCheckoutSession(t *testing.T) {
	var captured struct {
		auth string
		form url.Values
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		captured.auth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		captured.form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_live_1","url":"https://checkout.stripe.com/pay/cs_live_1"}`))
	}))
	defer srv.Close()

	svc := NewStripeCheckoutService("sk_test", "https://clinic/success", "https://clinic/cancel", nil).
		WithBaseURL(srv.URL)

	resp, err := svc.CreateCheckoutSession(context.Background(), CheckoutParams{
		AppointmentID: 101,
		Product:       InitialConsultation,
		CustomerEmail: "pat@example.com",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if resp.URL != "https://checkout.stripe.com/pay/cs_live_1" || resp.ProviderID != "cs_live_1" {
		t.Fatalf("resp = %+v", resp)
	}

	if captured.auth != "Bearer sk_test" {
		t.Errorf("auth = %q", captured.auth)
	}
	form := captured.form
	if got := form.Get("line_items[0][price_data][unit_amount]"); got != "15000" {
		t.Errorf("unit_amount = %q", got)
	}
	if got := form.Get("line_items[0][price_data][currency]"); got != "aud" {
		t.Errorf("currency = %q", got)
	}
	if got := form.Get("metadata[appointment_id]"); got != "101" {
		t.Errorf("session metadata appointment_id = %q", got)
	}
	if got := form.Get("payment_intent_data[metadata][appointment_id]"); got != "101" {
		t.Errorf("intent metadata appointment_id = %q", got)
	}
	if got := form.Get("customer_email"); got != "pat@example.com" {
		t.Errorf("customer_email = %q", got)
	}
}

func TestCreateCheckoutSessionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer srv.Close()

	svc := NewStripeCheckoutService("sk_test", "", "", nil).WithBaseURL(srv.URL)
	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutParams{
		AppointmentID: 101,
		Product:       FollowUpConsultation,
	})
	if err == nil || !strings.Contains(err.Error(), "status 402") {
		t.Fatalf("err = %v, want status 402 error", err)
	}
}

func TestCreateCheckoutSessionDryRun(t *testing.T) {
	svc := NewStripeCheckoutService("sk_test", "", "", nil).WithDryRun(true)
	resp, err := svc.CreateCheckoutSession(context.Background(), CheckoutParams{
		AppointmentID: 101,
		Product:       InitialConsultation,
	})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(resp.URL, "dry-run") {
		t.Fatalf("resp = %+v", resp)
	}
}
