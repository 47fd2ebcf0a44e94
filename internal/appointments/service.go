package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-platform/internal/audit"
	"github.com/wolfman30/clinic-booking-platform/internal/gcal"
	"github.com/wolfman30/clinic-booking-platform/internal/identity"
	"github.com/wolfman30/clinic-booking-platform/internal/notify"
	"github.com/wolfman30/clinic-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-platform/internal/users"
	"github.com/wolfman30/clinic-booking-platform/internal/video"
	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

var tracer = otel.Tracer("clinic-booking-platform/appointments")

var (
	// ErrForbidden indicates the caller may not act on this appointment.
	ErrForbidden = errors.New("appointments: forbidden")
	// ErrInvalidClinician indicates the clinician id does not name a clinician.
	ErrInvalidClinician = errors.New("appointments: invalid clinician")
	// ErrInvalidRequest indicates a malformed booking request.
	ErrInvalidRequest = errors.New("appointments: invalid request")
	// ErrTerminalStatus indicates a transition out of a terminal state.
	ErrTerminalStatus = errors.New("appointments: status is terminal")
)

type store interface {
	HasConflict(ctx context.Context, clinicianID int64, scheduledAt time.Time, durationMinutes int, excludeID int64) (bool, error)
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	ListForUser(ctx context.Context, userID int64) ([]Appointment, error)
	Upcoming(ctx context.Context, userID int64, now time.Time) ([]Appointment, error)
	ListActiveForClinicianBetween(ctx context.Context, clinicianID int64, from, to time.Time) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type userDirectory interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
	ListClinicians(ctx context.Context) ([]users.User, error)
}

type videoProvisioner interface {
	CreateRoom(ctx context.Context, req video.RoomRequest) (*video.Room, error)
}

type calendarScheduler interface {
	CreateEvent(ctx context.Context, ev gcal.Event) (string, error)
}

type notifier interface {
	SendBookingConfirmation(ctx context.Context, c notify.BookingConfirmation) error
}

type auditLogger interface {
	LogAction(ctx context.Context, e audit.Entry)
}

type referralMarker interface {
	MarkBooked(ctx context.Context, referralID string) error
}

// ServiceConfig carries the scheduling policy knobs.
type ServiceConfig struct {
	SlotMinutes    int
	WorkingHours   WorkingHours
	Location       *time.Location
	ClinicName     string
	RequirePayment bool
}

// Service implements the booking workflow. Video room, calendar event, and
// confirmation email are best-effort: a failure in any of them is logged and
// the booking proceeds without that artifact. Nothing provisioned earlier is
// rolled back.
type Service struct {
	store     store
	users     userDirectory
	locker    SlotLocker
	video     videoProvisioner
	calendar  calendarScheduler
	notify    notifier
	audit     auditLogger
	referrals referralMarker
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	cfg       ServiceConfig

	now func() time.Time
}

func NewService(store store, users userDirectory, locker SlotLocker, cfg ServiceConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if locker == nil {
		locker = NoopSlotLocker{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 30
	}
	if cfg.WorkingHours == (WorkingHours{}) {
		cfg.WorkingHours = WorkingHours{StartHour: 9, EndHour: 17}
	}
	return &Service{
		store:  store,
		users:  users,
		locker: locker,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithVideo attaches a video room provisioner.
func (s *Service) WithVideo(v videoProvisioner) *Service { s.video = v; return s }

// WithCalendar attaches a calendar scheduler.
func (s *Service) WithCalendar(c calendarScheduler) *Service { s.calendar = c; return s }

// WithNotifier attaches the confirmation email sender.
func (s *Service) WithNotifier(n notifier) *Service { s.notify = n; return s }

// WithAudit attaches the audit trail.
func (s *Service) WithAudit(a auditLogger) *Service { s.audit = a; return s }

// WithMetrics attaches booking metrics.
func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service { s.metrics = m; return s }

// WithReferrals attaches the referral store so bookings made from a
// referral link close the loop on the referral.
func (s *Service) WithReferrals(r referralMarker) *Service { s.referrals = r; return s }

// BookRequest is a patient's request for a consultation slot.
type BookRequest struct {
	ClinicianID     int64
	ScheduledAt     time.Time
	DurationMinutes int
	Type            Type
	Notes           string
	ReferralID      string
}

// Book runs the full booking workflow for the authenticated patient.
func (s *Service) Book(ctx context.Context, caller identity.User, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Book")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinician_id", req.ClinicianID),
		attribute.String("appointment_type", string(req.Type)),
	)

	if caller.Role != identity.RolePatient {
		s.metrics.ObserveBooking(metrics.OutcomeForbidden)
		return nil, fmt.Errorf("%w: only patients can book", ErrForbidden)
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = s.cfg.SlotMinutes
	}
	if !ValidType(string(req.Type)) {
		return nil, fmt.Errorf("%w: unknown appointment type %q", ErrInvalidRequest, req.Type)
	}
	if req.ScheduledAt.IsZero() || req.ScheduledAt.Before(s.now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", ErrInvalidRequest)
	}

	clinician, err := s.users.GetByID(ctx, req.ClinicianID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrInvalidClinician
	}
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeError)
		return nil, err
	}
	if !clinician.IsClinician() {
		return nil, ErrInvalidClinician
	}

	patient, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeError)
		return nil, err
	}

	appt := &Appointment{
		PatientID:       caller.ID,
		ClinicianID:     req.ClinicianID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Notes:           req.Notes,
		Status:          StatusScheduled,
		PaymentStatus:   PaymentUnpaid,
	}
	if s.cfg.RequirePayment {
		appt.Status = StatusPendingPayment
	}

	err = s.locker.WithClinicianLock(ctx, req.ClinicianID, func(ctx context.Context) error {
		conflict, err := s.store.HasConflict(ctx, req.ClinicianID, req.ScheduledAt, req.DurationMinutes, 0)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotTaken
		}

		s.provisionVideoRoom(ctx, appt)
		s.scheduleCalendarEvent(ctx, appt, patient, clinician)

		return s.store.Create(ctx, appt)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrLockNotAcquired):
			s.metrics.ObserveBooking(metrics.OutcomeConflict)
		default:
			s.metrics.ObserveBooking(metrics.OutcomeError)
		}
		return nil, err
	}

	s.metrics.ObserveBooking(metrics.OutcomeBooked)
	span.SetAttributes(attribute.Int64("appointment_id", appt.ID))

	if s.audit != nil {
		s.audit.LogAction(ctx, audit.Entry{
			UserID:       &caller.ID,
			Action:       "appointment.booked",
			ResourceType: "appointment",
			ResourceID:   fmt.Sprintf("%d", appt.ID),
		})
	}

	if req.ReferralID != "" && s.referrals != nil {
		if err := s.referrals.MarkBooked(ctx, req.ReferralID); err != nil {
			s.logger.Warn("could not mark referral booked",
				"error", err, "referral_id", req.ReferralID, "appointment_id", appt.ID)
		}
	}

	s.sendConfirmation(ctx, appt, patient, clinician)

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"patient_id", appt.PatientID,
		"clinician_id", appt.ClinicianID,
		"scheduled_at", appt.ScheduledAt,
		"status", appt.Status,
	)
	return appt, nil
}

func (s *Service) provisionVideoRoom(ctx context.Context, appt *Appointment) {
	if s.video == nil {
		return
	}
	room, err := s.video.CreateRoom(ctx, video.RoomRequest{
		Name:      fmt.Sprintf("consult-%d-%d", appt.ClinicianID, appt.ScheduledAt.Unix()),
		ExpiresAt: appt.End().Add(time.Hour),
	})
	if err != nil {
		s.logger.Error("video room provisioning failed, booking continues",
			"clinician_id", appt.ClinicianID, "error", err)
		return
	}
	appt.VideoRoomURL = room.URL
}

func (s *Service) scheduleCalendarEvent(ctx context.Context, appt *Appointment, patient, clinician *users.User) {
	if s.calendar == nil {
		return
	}
	eventID, err := s.calendar.CreateEvent(ctx, gcal.Event{
		Summary:     fmt.Sprintf("%s consultation: %s with %s", appt.Type, patient.Name, clinician.Name),
		Description: appt.Notes,
		Start:       appt.ScheduledAt,
		End:         appt.End(),
		Timezone:    s.cfg.Location.String(),
		Attendees:   []string{patient.Email, clinician.Email},
		Location:    appt.VideoRoomURL,
	})
	if err != nil {
		s.logger.Error("calendar event creation failed, booking continues",
			"clinician_id", appt.ClinicianID, "error", err)
		return
	}
	appt.GoogleCalendarEventID = eventID
}

func (s *Service) sendConfirmation(ctx context.Context, appt *Appointment, patient, clinician *users.User) {
	if s.notify == nil {
		return
	}
	err := s.notify.SendBookingConfirmation(ctx, notify.BookingConfirmation{
		To:            patient.Email,
		PatientName:   patient.Name,
		ClinicianName: clinician.Name,
		ClinicName:    s.cfg.ClinicName,
		Start:         appt.ScheduledAt,
		End:           appt.End(),
		Timezone:      s.cfg.Location.String(),
		VideoRoomURL:  appt.VideoRoomURL,
	})
	if err != nil {
		s.logger.Error("confirmation email failed, booking stands",
			"appointment_id", appt.ID, "error", err)
	}
}

// Cancel cancels an appointment. Only the owning patient or the assigned
// clinician may cancel. Cancelling an already-cancelled appointment is a
// no-op success.
func (s *Service) Cancel(ctx context.Context, caller identity.User, id int64) error {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.mayManage(caller, appt) {
		return ErrForbidden
	}
	if appt.Status == StatusCancelled {
		return nil
	}
	if appt.Status.Terminal() {
		return fmt.Errorf("%w: cannot cancel a %s appointment", ErrTerminalStatus, appt.Status)
	}
	if err := s.store.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogAction(ctx, audit.Entry{
			UserID:       &caller.ID,
			Action:       "appointment.cancelled",
			ResourceType: "appointment",
			ResourceID:   fmt.Sprintf("%d", id),
		})
	}
	s.logger.Info("appointment cancelled", "appointment_id", id, "by_user", caller.ID)
	return nil
}

// UpdateStatus transitions the lifecycle state. Terminal states are frozen.
func (s *Service) UpdateStatus(ctx context.Context, caller identity.User, id int64, status Status) error {
	if !ValidStatus(string(status)) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	if status == StatusCancelled {
		return s.Cancel(ctx, caller, id)
	}

	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.mayManage(caller, appt) {
		return ErrForbidden
	}
	if appt.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalStatus, appt.Status)
	}
	if appt.Status == status {
		return nil
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogAction(ctx, audit.Entry{
			UserID:       &caller.ID,
			Action:       "appointment.status_changed",
			ResourceType: "appointment",
			ResourceID:   fmt.Sprintf("%d", id),
			Metadata:     []byte(fmt.Sprintf(`{"from":%q,"to":%q}`, appt.Status, status)),
		})
	}
	return nil
}

// Get returns the appointment if the caller owns it or is assigned to it.
// Admins may read any appointment.
func (s *Service) Get(ctx context.Context, caller identity.User, id int64) (*Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != identity.RoleAdmin && !s.mayManage(caller, appt) {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListOwn returns the caller's appointments, newest first.
func (s *Service) ListOwn(ctx context.Context, caller identity.User) ([]Appointment, error) {
	return s.store.ListForUser(ctx, caller.ID)
}

// Upcoming returns the caller's future active appointments.
func (s *Service) Upcoming(ctx context.Context, caller identity.User) ([]Appointment, error) {
	return s.store.Upcoming(ctx, caller.ID, s.now())
}

// Clinicians lists the bookable clinicians.
func (s *Service) Clinicians(ctx context.Context) ([]users.User, error) {
	return s.users.ListClinicians(ctx)
}

// AvailableSlots enumerates the clinician's free slot starts for one
// calendar day in the clinic timezone. The day's bookings are fetched once;
// each candidate slot is tested in memory.
func (s *Service) AvailableSlots(ctx context.Context, clinicianID int64, date time.Time) ([]time.Time, error) {
	clinician, err := s.users.GetByID(ctx, clinicianID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrInvalidClinician
	}
	if err != nil {
		return nil, err
	}
	if !clinician.IsClinician() {
		return nil, ErrInvalidClinician
	}

	loc := s.cfg.Location
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	booked, err := s.store.ListActiveForClinicianBetween(ctx, clinicianID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	free := FreeSlots(dayStart, s.cfg.WorkingHours, s.cfg.SlotMinutes, loc, booked)

	// Past slots of the current day are not offered.
	now := s.now()
	out := free[:0]
	for _, slot := range free {
		if slot.After(now) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *Service) mayManage(caller identity.User, appt *Appointment) bool {
	switch caller.Role {
	case identity.RolePatient:
		return appt.PatientID == caller.ID
	case identity.RoleClinician:
		return appt.ClinicianID == caller.ID
	case identity.RoleAdmin:
		return true
	}
	return false
}
