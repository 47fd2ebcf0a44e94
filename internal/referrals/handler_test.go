package referrals

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/clinic-booking-platform/internal/identity"
)

func testHandler(t *testing.T) (*Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return NewHandler(NewRepository(mock), "https://surecan.example", nil), mock
}

func testRouter(h *Handler, user *identity.User) http.Handler {
	r := chi.NewRouter()
	if user != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(identity.WithUser(req.Context(), *user)))
			})
		})
	}
	r.Post("/api/referrals", h.Create)
	r.Get("/api/referrals", h.List)
	r.Get("/api/referrals/stats", h.GetStats)
	r.Get("/api/referrals/{referralId}", h.Lookup)
	return r
}

func TestCreateReferralHandler(t *testing.T) {
	h, mock := testHandler(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO referrals`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(7), now, now))

	body, _ := json.Marshal(validCreateRequest())
	req := httptest.NewRequest(http.MethodPost, "/api/referrals", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	testRouter(h, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ReferralID  string `json:"referralId"`
		Status      string `json:"status"`
		BookingLink string `json:"bookingLink"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "pending" || resp.ReferralID == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.BookingLink == "" {
		t.Error("booking link missing from create response")
	}
}

func TestCreateReferralHandlerValidation(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/referrals",
		bytes.NewBufferString(`{"patientName":"Alex"}`))
	rec := httptest.NewRecorder()
	testRouter(h, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLookupReferral(t *testing.T) {
	h, mock := testHandler(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM referrals WHERE referral_id`).
		WithArgs("SURE-R-A1B2C3", "deadbeef").
		WillReturnRows(pgxmock.NewRows(referralCols).
			AddRow(int64(7), "SURE-R-A1B2C3", "deadbeef", "Alex Smith", "alex@example.com", "",
				"Dr. Jones", "jones@gp.example", "", "chronic pain", "soon", "pending",
				nil, now, now))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals/SURE-R-A1B2C3?token=deadbeef", nil)
	rec := httptest.NewRecorder()
	testRouter(h, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("deadbeef")) {
		t.Error("booking token leaked in lookup response")
	}
}

func TestLookupReferralMissingToken(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals/SURE-R-A1B2C3", nil)
	rec := httptest.NewRecorder()
	testRouter(h, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without token", rec.Code)
	}
}

func TestListReferrals(t *testing.T) {
	h, mock := testHandler(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM referrals WHERE referrer_email`).
		WithArgs("jones@gp.example").
		WillReturnRows(pgxmock.NewRows(referralCols).
			AddRow(int64(7), "SURE-R-A1B2C3", "deadbeef", "Alex Smith", "alex@example.com", "",
				"Dr. Jones", "jones@gp.example", "", "chronic pain", "soon", "booked",
				&now, now, now))

	user := &identity.User{ID: 5, Role: identity.RoleClinician, Email: "jones@gp.example"}
	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	rec := httptest.NewRecorder()
	testRouter(h, user).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Referrals []Referral `json:"referrals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Referrals) != 1 || resp.Referrals[0].Status != StatusBooked {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestListReferralsUnauthenticated(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	rec := httptest.NewRecorder()
	testRouter(h, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestReferralStatsHandler(t *testing.T) {
	h, mock := testHandler(t)
	mock.ExpectQuery(`SELECT count\(\*\)`).
		WithArgs("jones@gp.example").
		WillReturnRows(pgxmock.NewRows([]string{"total", "pending", "contacted", "booked", "completed", "cancelled"}).
			AddRow(3, 1, 0, 2, 0, 0))

	user := &identity.User{ID: 5, Role: identity.RoleClinician, Email: "jones@gp.example"}
	req := httptest.NewRequest(http.MethodGet, "/api/referrals/stats", nil)
	rec := httptest.NewRecorder()
	testRouter(h, user).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var stats Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Booked != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}
