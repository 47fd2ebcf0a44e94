package users

import (
	"time"

	"github.com/wolfman30/clinic-booking-platform/internal/identity"
)

// User is a platform account: patient, clinician, or admin.
type User struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone,omitempty"`
	Role           identity.Role `json:"role"`
	AHPRANumber    string        `json:"ahpraNumber,omitempty"`
	Specialization string        `json:"specialization,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// IsClinician reports whether the user can be booked against.
func (u *User) IsClinician() bool {
	return u.Role == identity.RoleClinician
}
