package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

// BookingConfirmation carries everything needed for the confirmation email.
type BookingConfirmation struct {
	To            string
	PatientName   string
	ClinicianName string
	ClinicName    string
	Start         time.Time
	End           time.Time
	Timezone      string
	VideoRoomURL  string
}

// Service sends patient-facing and clinic-facing notifications.
type Service struct {
	email       EmailSender
	clinicEmail string
	logger      *logging.Logger
}

// NewService creates a notification service. clinicEmail receives internal
// notices such as new-lead alerts; empty disables them.
func NewService(email EmailSender, clinicEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, clinicEmail: clinicEmail, logger: logger}
}

// SendBookingConfirmation emails the patient their consultation details with
// a calendar invite attached.
func (s *Service) SendBookingConfirmation(ctx context.Context, c BookingConfirmation) error {
	if s.email == nil {
		s.logger.Debug("email not configured, skipping booking confirmation", "to", c.To)
		return nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localStart := c.Start.In(loc)

	subject := fmt.Sprintf("Appointment confirmed: %s", localStart.Format("Mon 2 Jan, 3:04 PM"))

	body := fmt.Sprintf(`Hi %s,

Your consultation with %s is confirmed.

When: %s to %s (%s)`,
		c.PatientName, c.ClinicianName,
		localStart.Format("Monday 2 January 2006, 3:04 PM"),
		c.End.In(loc).Format("3:04 PM"), c.Timezone)
	if c.VideoRoomURL != "" {
		body += fmt.Sprintf("\nJoin online: %s", c.VideoRoomURL)
	}
	body += fmt.Sprintf("\n\nA calendar invite is attached. You will receive reminders a day and an hour before your appointment.\n\n%s", c.ClinicName)

	ics := BuildICS(ICSEvent{
		UID:         fmt.Sprintf("%d-%s@surecan", c.Start.Unix(), c.To),
		Summary:     fmt.Sprintf("Consultation with %s", c.ClinicianName),
		Description: body,
		Location:    c.VideoRoomURL,
		Start:       c.Start,
		End:         c.End,
	})

	msg := EmailMessage{
		To:      c.To,
		ToName:  c.PatientName,
		Subject: subject,
		Body:    body,
		Attachments: []Attachment{{
			Filename:    "appointment.ics",
			ContentType: "text/calendar",
			Content:     ics,
		}},
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	return nil
}

// NotifyNewLead alerts the clinic inbox about a new lead. Best effort.
func (s *Service) NotifyNewLead(ctx context.Context, name, email, profession string) error {
	if s.email == nil || s.clinicEmail == "" {
		return nil
	}
	msg := EmailMessage{
		To:      s.clinicEmail,
		Subject: fmt.Sprintf("New lead: %s", name),
		Body: fmt.Sprintf(`A new lead has come in.

Name: %s
Email: %s
Profession: %s`, name, email, profession),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: new lead: %w", err)
	}
	return nil
}
