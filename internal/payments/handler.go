package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/clinic-booking-platform/internal/appointments"
	"github.com/wolfman30/clinic-booking-platform/internal/identity"
	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

type appointmentReader interface {
	GetByID(ctx context.Context, id int64) (*appointments.Appointment, error)
}

type checkoutCreator interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error)
}

// CheckoutHandler creates checkout sessions for unpaid appointments.
type CheckoutHandler struct {
	appointments appointmentReader
	checkout     checkoutCreator
	logger       *logging.Logger
}

func NewCheckoutHandler(appts appointmentReader, checkout checkoutCreator, logger *logging.Logger) *CheckoutHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{appointments: appts, checkout: checkout, logger: logger}
}

type checkoutPayload struct {
	AppointmentID int64 `json:"appointmentId"`
	BulkBilled    bool  `json:"bulkBilled"`
}

// Handle creates a Stripe Checkout Session for the caller's own
// pending-payment appointment.
func (h *CheckoutHandler) Handle(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	appt, err := h.appointments.GetByID(r.Context(), payload.AppointmentID)
	if errors.Is(err, appointments.ErrNotFound) {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("appointment lookup failed", "appointment_id", payload.AppointmentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if appt.PatientID != caller.ID {
		writeError(w, http.StatusForbidden, "not your appointment")
		return
	}
	if appt.Status != appointments.StatusPendingPayment {
		writeError(w, http.StatusConflict, "appointment does not need payment")
		return
	}
	if appt.PaymentStatus == appointments.PaymentPaid {
		writeError(w, http.StatusConflict, "appointment already paid")
		return
	}

	product := ProductFor(appt.Type, payload.BulkBilled)
	session, err := h.checkout.CreateCheckoutSession(r.Context(), CheckoutParams{
		AppointmentID: appt.ID,
		Product:       product,
		CustomerEmail: caller.Email,
	})
	if err != nil {
		h.logger.Error("checkout session creation failed", "appointment_id", appt.ID, "error", err)
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":         session.URL,
		"sessionId":   session.ProviderID,
		"amountCents": product.AmountCents,
		"product":     product.Code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
