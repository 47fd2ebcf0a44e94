package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-platform/internal/identity"
	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

// Handler exposes the booking workflow over HTTP. All routes require an
// authenticated user in the request context.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the appointment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/appointments", h.book)
	r.Get("/appointments", h.list)
	r.Get("/appointments/upcoming", h.upcoming)
	r.Get("/appointments/{id}", h.get)
	r.Post("/appointments/{id}/cancel", h.cancel)
	r.Post("/appointments/{id}/status", h.updateStatus)
	r.Get("/clinicians", h.clinicians)
	r.Get("/clinicians/{id}/slots", h.slots)
}

type bookPayload struct {
	ClinicianID     int64     `json:"clinicianId"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes"`
	AppointmentType string    `json:"appointmentType"`
	Notes           string    `json:"notes"`
	ReferralID      string    `json:"referralId"`
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload bookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	appt, err := h.svc.Book(r.Context(), caller, BookRequest{
		ClinicianID:     payload.ClinicianID,
		ScheduledAt:     payload.ScheduledAt,
		DurationMinutes: payload.DurationMinutes,
		Type:            Type(payload.AppointmentType),
		Notes:           payload.Notes,
		ReferralID:      payload.ReferralID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"appointmentId": appt.ID,
		"status":        appt.Status,
		"videoRoomUrl":  appt.VideoRoomURL,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	appts, err := h.svc.ListOwn(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": emptyIfNil(appts)})
}

func (h *Handler) upcoming(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	appts, err := h.svc.Upcoming(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": emptyIfNil(appts)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	appt, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	if err := h.svc.Cancel(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.UpdateStatus(r.Context(), caller, id, Status(payload.Status)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) clinicians(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Clinicians(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clinicians": list})
}

func (h *Handler) slots(w http.ResponseWriter, r *http.Request) {
	clinicianID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clinician id")
		return
	}
	dateStr := r.URL.Query().Get("date")
	date, err := time.ParseInLocation("2006-01-02", dateStr, h.svc.cfg.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	slots, err := h.svc.AvailableSlots(r.Context(), clinicianID, date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": dateStr, "slots": out})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSlotTaken):
		writeError(w, http.StatusConflict, "the requested slot is already booked")
	case errors.Is(err, ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "another booking for this clinician is in progress, please retry")
	case errors.Is(err, ErrTerminalStatus):
		writeError(w, http.StatusConflict, "appointment is in a terminal state")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "you may not act on this appointment")
	case errors.Is(err, ErrInvalidClinician):
		writeError(w, http.StatusBadRequest, "unknown clinician")
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid booking request")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	default:
		h.logger.Error("appointment request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func emptyIfNil(appts []Appointment) []Appointment {
	if appts == nil {
		return []Appointment{}
	}
	return appts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
