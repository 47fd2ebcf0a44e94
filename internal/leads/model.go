package leads

import (
	"strings"
	"time"
)

// Lead is a prospective referrer or patient captured from the public site.
// Leads are keyed by email; resubmitting bumps the engagement score instead
// of creating a duplicate.
type Lead struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Profession      string    `json:"profession,omitempty"`
	Practice        string    `json:"practice,omitempty"`
	Source          string    `json:"source,omitempty"`
	EngagementScore int       `json:"engagementScore"`
	LastActivityAt  time.Time `json:"lastActivityAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CreateLeadRequest is the public lead-capture payload.
type CreateLeadRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Profession string `json:"profession"`
	Practice   string `json:"practice"`
	Source     string `json:"source"`
}

// Validate checks the request.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	email := strings.TrimSpace(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}
