package referrals

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-platform/internal/identity"
	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

// Handler handles HTTP requests for referrals.
type Handler struct {
	repo    *Repository
	baseURL string
	logger  *logging.Logger
}

// NewHandler creates a referrals handler. baseURL is the public site base
// used when building patient booking links.
func NewHandler(repo *Repository, baseURL string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, baseURL: baseURL, logger: logger}
}

// Create handles POST /api/referrals. Public: prescribers submit without an
// account. The response includes the tokenised booking link to pass on to
// the patient.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create referral", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("referral created",
		"referral_id", ref.ReferralID,
		"urgency", ref.Urgency,
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"referralId":  ref.ReferralID,
		"status":      ref.Status,
		"bookingLink": ref.BookingLink(h.baseURL),
	})
}

// Lookup handles GET /api/referrals/{referralId}?token=... for booking
// prefill. Both the id and the token must match; a miss on either returns
// the same 404 so ids cannot be probed.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	referralID := chi.URLParam(r, "referralId")
	token := r.URL.Query().Get("token")
	if referralID == "" || token == "" {
		writeError(w, http.StatusNotFound, "referral not found")
		return
	}

	ref, err := h.repo.GetByReferralID(r.Context(), referralID, token)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "referral not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to look up referral", "error", err, "referral_id", referralID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

// List handles GET /api/referrals: the authenticated caller's referrals,
// matched by the email they referred under.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	refs, err := h.repo.ListByReferrerEmail(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("failed to list referrals", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refs == nil {
		refs = []Referral{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"referrals": refs})
}

// GetStats handles GET /api/referrals/stats for the authenticated caller.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := h.repo.StatsByReferrerEmail(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("failed to load referral stats", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
