package appointments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-platform/internal/identity"
)

func testRouter(svc *Service, caller *identity.User) http.Handler {
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	if caller != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(identity.WithUser(req.Context(), *caller)))
			})
		})
	}
	r.Route("/api", func(r chi.Router) { h.Routes(r) })
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBook(t *testing.T) {
	store := newStubStore()
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, &patient)

	rec := doJSON(t, router, http.MethodPost, "/api/appointments", map[string]any{
		"clinicianId":     5,
		"scheduledAt":     "2026-03-10T09:00:00Z",
		"durationMinutes": 30,
		"appointmentType": "initial",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success       bool   `json:"success"`
		AppointmentID int64  `json:"appointmentId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.AppointmentID == 0 || resp.Status != "pending_payment" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandlerBookConflict(t *testing.T) {
	store := newStubStore()
	store.conflict = true
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, &patient)

	rec := doJSON(t, router, http.MethodPost, "/api/appointments", map[string]any{
		"clinicianId":     5,
		"scheduledAt":     "2026-03-10T09:00:00Z",
		"appointmentType": "initial",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerBookByClinicianForbidden(t *testing.T) {
	store := newStubStore()
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, &clinician)

	rec := doJSON(t, router, http.MethodPost, "/api/appointments", map[string]any{
		"clinicianId":     5,
		"scheduledAt":     "2026-03-10T09:00:00Z",
		"appointmentType": "initial",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestHandlerUnauthenticated(t *testing.T) {
	store := newStubStore()
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/appointments", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandlerCancelAndGet(t *testing.T) {
	store := newStubStore()
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, &patient)

	appt, err := svc.Book(t.Context(), patient, validRequest())
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/appointments/%d", appt.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/appointments/%d/cancel", appt.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Cancel again: idempotent success.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/appointments/%d/cancel", appt.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat cancel status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/appointments/999/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing cancel status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/appointments/abc/cancel", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", rec.Code)
	}
}

func TestHandlerSlots(t *testing.T) {
	store := newStubStore()
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, &patient)

	if _, err := svc.Book(t.Context(), patient, validRequest()); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/clinicians/5/slots?date=2026-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Slots) != 15 {
		t.Fatalf("slots = %d, want 15", len(resp.Slots))
	}
	booked := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	for _, s := range resp.Slots {
		if s == booked {
			t.Error("booked slot still offered")
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/clinicians/5/slots?date=10-03-2026", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
}

func TestHandlerUpdateStatus(t *testing.T) {
	store := newStubStore()
	svc, _, _, _, _ := testService(store)
	router := testRouter(svc, &clinician)

	appt, err := svc.Book(t.Context(), patient, validRequest())
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/appointments/%d/status", appt.ID),
		map[string]string{"status": "in_progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/appointments/%d/status", appt.ID),
		map[string]string{"status": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d, want 400", rec.Code)
	}
}
