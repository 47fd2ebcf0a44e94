package referrals

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status of a referral through its intake lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusContacted Status = "contacted"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Urgency levels accepted on intake.
var validUrgencies = map[string]bool{"routine": true, "soon": true, "urgent": true}

// Referral is a prescriber's patient referral. ReferralID is the
// human-facing SURE-R-XXXXXX identifier; BookingToken gates the public
// prefill lookup so the id alone reveals nothing.
type Referral struct {
	ID                 int64      `json:"id"`
	ReferralID         string     `json:"referralId"`
	BookingToken       string     `json:"-"`
	PatientName        string     `json:"patientName"`
	PatientEmail       string     `json:"patientEmail"`
	PatientPhone       string     `json:"patientPhone,omitempty"`
	ReferrerName       string     `json:"referrerName"`
	ReferrerEmail      string     `json:"referrerEmail"`
	ReferrerAHPRA      string     `json:"referrerAhpra,omitempty"`
	Condition          string     `json:"condition,omitempty"`
	Urgency            string     `json:"urgency"`
	Status             Status     `json:"status"`
	BookingCompletedAt *time.Time `json:"bookingCompletedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// BookingLink is the tokenised URL patients use to book from a referral.
func (r *Referral) BookingLink(baseURL string) string {
	return fmt.Sprintf("%s/book?referral=%s&token=%s",
		strings.TrimRight(baseURL, "/"), r.ReferralID, r.BookingToken)
}

// CreateRequest is the public referral intake payload.
type CreateRequest struct {
	PatientName   string `json:"patientName"`
	PatientEmail  string `json:"patientEmail"`
	PatientPhone  string `json:"patientPhone"`
	ReferrerName  string `json:"referrerName"`
	ReferrerEmail string `json:"referrerEmail"`
	ReferrerAHPRA string `json:"referrerAhpra"`
	Condition     string `json:"condition"`
	Urgency       string `json:"urgency"`
}

// Validate checks the intake payload, defaulting urgency to routine.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.PatientName) == "" {
		return fmt.Errorf("referrals: patient name is required")
	}
	if !strings.Contains(r.PatientEmail, "@") {
		return fmt.Errorf("referrals: a valid patient email is required")
	}
	if strings.TrimSpace(r.ReferrerName) == "" {
		return fmt.Errorf("referrals: referrer name is required")
	}
	if !strings.Contains(r.ReferrerEmail, "@") {
		return fmt.Errorf("referrals: a valid referrer email is required")
	}
	if r.Urgency == "" {
		r.Urgency = "routine"
	}
	if !validUrgencies[r.Urgency] {
		return fmt.Errorf("referrals: urgency must be routine, soon, or urgent")
	}
	return nil
}

// Stats summarizes a prescriber's referrals.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Contacted int `json:"contacted"`
	Booked    int `json:"booked"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// newReferralID mints a SURE-R-XXXXXX identifier from random hex.
func newReferralID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return "SURE-R-" + strings.ToUpper(hex.EncodeToString(buf))
}

// newBookingToken mints the secret half of the booking link.
func newBookingToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
