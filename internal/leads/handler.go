package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

type newLeadNotifier interface {
	NotifyNewLead(ctx context.Context, name, email, profession string) error
}

// Handler handles HTTP requests for leads.
type Handler struct {
	repo     *Repository
	notifier newLeadNotifier
	logger   *logging.Logger
}

// NewHandler creates a new leads handler. notifier may be nil.
func NewHandler(repo *Repository, notifier newLeadNotifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, notifier: notifier, logger: logger}
}

// Create handles POST /api/leads. The endpoint is public and idempotent per
// email: resubmission refreshes the lead and bumps its engagement score.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	lead, inserted, err := h.repo.Upsert(r.Context(), &req)
	if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrInvalidEmail) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("failed to upsert lead", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if inserted && h.notifier != nil {
		if err := h.notifier.NotifyNewLead(r.Context(), lead.Name, lead.Email, lead.Profession); err != nil {
			h.logger.Warn("new lead notification failed", "error", err, "lead_id", lead.ID)
		}
	}

	h.logger.Info("lead captured", "lead_id", lead.ID, "new", inserted)

	w.Header().Set("Content-Type", "application/json")
	if inserted {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(lead)
}
