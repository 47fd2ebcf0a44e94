package appointments

import "time"

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusScheduled      Status = "scheduled"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
)

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPendingPayment, StatusScheduled, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ReservesSlot reports whether an appointment in this state blocks the
// clinician's calendar. Cancelled and no-show rows free the slot.
func (s Status) ReservesSlot() bool {
	switch s {
	case StatusPendingPayment, StatusScheduled, StatusInProgress:
		return true
	}
	return false
}

// PaymentStatus tracks money state independently of the lifecycle state.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Type distinguishes consultation kinds; they map to different products.
type Type string

const (
	TypeInitial   Type = "initial"
	TypeFollowUp  Type = "follow_up"
	TypeEmergency Type = "emergency"
)

// ValidType reports whether t names a known consultation kind.
func ValidType(t string) bool {
	switch Type(t) {
	case TypeInitial, TypeFollowUp, TypeEmergency:
		return true
	}
	return false
}

// Appointment is a booked consultation between a patient and a clinician.
type Appointment struct {
	ID                    int64         `json:"id"`
	PatientID             int64         `json:"patientId"`
	ClinicianID           int64         `json:"clinicianId"`
	ScheduledAt           time.Time     `json:"scheduledAt"`
	DurationMinutes       int           `json:"durationMinutes"`
	Status                Status        `json:"status"`
	Type                  Type          `json:"appointmentType"`
	PaymentStatus         PaymentStatus `json:"paymentStatus"`
	StripePaymentIntentID string        `json:"-"`
	AmountPaidCents       int64         `json:"amountPaidCents,omitempty"`
	VideoRoomURL          string        `json:"videoRoomUrl,omitempty"`
	GoogleCalendarEventID string        `json:"-"`
	Notes                 string        `json:"notes,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// End returns the exclusive end instant of the appointment window.
func (a *Appointment) End() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
