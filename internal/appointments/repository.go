package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the appointment does not exist or is soft-deleted.
	ErrNotFound = errors.New("appointments: not found")
	// ErrSlotTaken indicates the requested window overlaps an existing booking.
	ErrSlotTaken = errors.New("appointments: slot already booked")
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments in Postgres. The schema carries a
// btree_gist exclusion constraint over the clinician's time range, so a
// lost race between the conflict check and the insert still cannot
// double-book; the violation is mapped back to ErrSlotTaken.
type Repository struct {
	db querier
}

func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

const apptColumns = `id, patient_id, clinician_id, scheduled_at, duration_minutes,
	status, appointment_type, payment_status,
	COALESCE(stripe_payment_intent_id, ''), COALESCE(amount_paid_cents, 0),
	COALESCE(video_room_url, ''), COALESCE(google_calendar_event_id, ''),
	COALESCE(notes, ''), created_at, updated_at`

// activeStatuses is the set of states that reserve the clinician's calendar.
const activeStatuses = `('pending_payment', 'scheduled', 'in_progress')`

// HasConflict reports whether any active, non-deleted appointment of the
// clinician overlaps the half-open window [scheduledAt, scheduledAt+duration).
// excludeID skips one appointment, for reschedule checks; pass 0 to check all.
func (r *Repository) HasConflict(ctx context.Context, clinicianID int64, scheduledAt time.Time, durationMinutes int, excludeID int64) (bool, error) {
	end := scheduledAt.Add(time.Duration(durationMinutes) * time.Minute)

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE clinician_id = $1
			  AND deleted_at IS NULL
			  AND status IN `+activeStatuses+`
			  AND ($4 = 0 OR id <> $4)
			  AND scheduled_at < $3
			  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		)`, clinicianID, scheduledAt, end, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointments: conflict check: %w", err)
	}
	return exists, nil
}

// Create inserts the appointment and fills in its generated fields. An
// exclusion-constraint violation is returned as ErrSlotTaken.
func (r *Repository) Create(ctx context.Context, appt *Appointment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments
			(patient_id, clinician_id, scheduled_at, duration_minutes,
			 status, appointment_type, payment_status,
			 video_room_url, google_calendar_event_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''))
		RETURNING id, created_at, updated_at`,
		appt.PatientID, appt.ClinicianID, appt.ScheduledAt, appt.DurationMinutes,
		string(appt.Status), string(appt.Type), string(appt.PaymentStatus),
		appt.VideoRoomURL, appt.GoogleCalendarEventID, appt.Notes,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: create: %w", err)
	}
	return nil
}

// GetByID fetches one non-deleted appointment.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1 AND deleted_at IS NULL`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get by id: %w", err)
	}
	return appt, nil
}

// ListForUser returns the user's appointments, as patient or clinician,
// newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE (patient_id = $1 OR clinician_id = $1) AND deleted_at IS NULL
		ORDER BY scheduled_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for user: %w", err)
	}
	return collect(rows)
}

// Upcoming returns the user's future active appointments, soonest first.
func (r *Repository) Upcoming(ctx context.Context, userID int64, now time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE (patient_id = $1 OR clinician_id = $1)
		  AND deleted_at IS NULL
		  AND status IN `+activeStatuses+`
		  AND scheduled_at >= $2
		ORDER BY scheduled_at ASC`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("appointments: upcoming: %w", err)
	}
	return collect(rows)
}

// ListActiveForClinicianBetween fetches the clinician's reserving
// appointments inside [from, to) in one query, for slot enumeration.
func (r *Repository) ListActiveForClinicianBetween(ctx context.Context, clinicianID int64, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE clinician_id = $1
		  AND deleted_at IS NULL
		  AND status IN `+activeStatuses+`
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		ORDER BY scheduled_at ASC`, clinicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list clinician day: %w", err)
	}
	return collect(rows)
}

// UpdateStatus sets the lifecycle status of an appointment.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, string(status))
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid records a successful payment and promotes pending_payment rows to
// scheduled. Appointments already past pending_payment keep their lifecycle
// state.
func (r *Repository) MarkPaid(ctx context.Context, id int64, paymentIntentID string, amountCents int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET
			payment_status = 'paid',
			stripe_payment_intent_id = $2,
			amount_paid_cents = $3,
			status = CASE WHEN status = 'pending_payment' THEN 'scheduled' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, paymentIntentID, amountCents)
	if err != nil {
		return fmt.Errorf("appointments: mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaymentStatusByIntent updates payment_status on the appointment that
// owns the given payment intent. Returns the appointment id, or ErrNotFound
// when no appointment references the intent.
func (r *Repository) SetPaymentStatusByIntent(ctx context.Context, paymentIntentID string, status PaymentStatus) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE appointments SET payment_status = $2, updated_at = now()
		WHERE stripe_payment_intent_id = $1 AND deleted_at IS NULL
		RETURNING id`, paymentIntentID, string(status)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("appointments: set payment status by intent: %w", err)
	}
	return id, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, apptType, payStatus string
	if err := row.Scan(&a.ID, &a.PatientID, &a.ClinicianID, &a.ScheduledAt,
		&a.DurationMinutes, &status, &apptType, &payStatus,
		&a.StripePaymentIntentID, &a.AmountPaidCents,
		&a.VideoRoomURL, &a.GoogleCalendarEventID, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.Type = Type(apptType)
	a.PaymentStatus = PaymentStatus(payStatus)
	return &a, nil
}
