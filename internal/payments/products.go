package payments

import "github.com/wolfman30/clinic-booking-platform/internal/appointments"

// Product is a billable consultation type.
type Product struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

var (
	InitialConsultation = Product{
		Code:        "INITIAL_CONSULTATION",
		Name:        "Initial Consultation",
		AmountCents: 15000,
		Currency:    "aud",
	}
	FollowUpConsultation = Product{
		Code:        "FOLLOW_UP_CONSULTATION",
		Name:        "Follow-up Consultation",
		AmountCents: 7500,
		Currency:    "aud",
	}
	BulkBilledConsultation = Product{
		Code:        "BULK_BILLED_CONSULTATION",
		Name:        "Bulk Billed Consultation",
		AmountCents: 0,
		Currency:    "aud",
	}
)

// ProductFor maps an appointment type to its product. Bulk-billed patients
// pay nothing regardless of type. Emergency consultations bill at the
// initial rate.
func ProductFor(t appointments.Type, bulkBilled bool) Product {
	if bulkBilled {
		return BulkBilledConsultation
	}
	if t == appointments.TypeFollowUp {
		return FollowUpConsultation
	}
	return InitialConsultation
}
