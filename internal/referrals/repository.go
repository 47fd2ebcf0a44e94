package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates no referral matches the id (and token).
	ErrNotFound = errors.New("referrals: not found")
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists referrals in Postgres.
type Repository struct {
	db querier
}

func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

const referralColumns = `id, referral_id, booking_token, patient_name, patient_email,
	COALESCE(patient_phone, ''), referrer_name, referrer_email,
	COALESCE(referrer_ahpra, ''), COALESCE(condition, ''), urgency, status,
	booking_completed_at, created_at, updated_at`

// Create mints an id and token and inserts the referral. The generated
// referral id carries only 24 bits of entropy, so a collision re-mints and
// retries a couple of times before giving up.
func (r *Repository) Create(ctx context.Context, req *CreateRequest) (*Referral, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		ref := &Referral{
			ReferralID:    newReferralID(),
			BookingToken:  newBookingToken(),
			PatientName:   req.PatientName,
			PatientEmail:  strings.ToLower(strings.TrimSpace(req.PatientEmail)),
			PatientPhone:  req.PatientPhone,
			ReferrerName:  req.ReferrerName,
			ReferrerEmail: strings.ToLower(strings.TrimSpace(req.ReferrerEmail)),
			ReferrerAHPRA: req.ReferrerAHPRA,
			Condition:     req.Condition,
			Urgency:       req.Urgency,
			Status:        StatusPending,
		}

		err := r.db.QueryRow(ctx, `
			INSERT INTO referrals
				(referral_id, booking_token, patient_name, patient_email, patient_phone,
				 referrer_name, referrer_email, referrer_ahpra, condition, urgency, status)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, 'pending')
			RETURNING id, created_at, updated_at`,
			ref.ReferralID, ref.BookingToken, ref.PatientName, ref.PatientEmail, ref.PatientPhone,
			ref.ReferrerName, ref.ReferrerEmail, ref.ReferrerAHPRA, ref.Condition, ref.Urgency,
		).Scan(&ref.ID, &ref.CreatedAt, &ref.UpdatedAt)
		if err == nil {
			return ref, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("referrals: insert: %w", err)
	}
	return nil, fmt.Errorf("referrals: could not mint a unique referral id: %w", lastErr)
}

// GetByReferralID fetches a referral by its public id and booking token.
func (r *Repository) GetByReferralID(ctx context.Context, referralID, token string) (*Referral, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referral_id = $1 AND booking_token = $2`,
		referralID, token)
	ref, err := scanReferral(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("referrals: get: %w", err)
	}
	return ref, nil
}

// ListByReferrerEmail returns the prescriber's referrals, newest first.
func (r *Repository) ListByReferrerEmail(ctx context.Context, email string) ([]Referral, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_email = $1 ORDER BY created_at DESC`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("referrals: list: %w", err)
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("referrals: scan: %w", err)
		}
		out = append(out, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("referrals: rows: %w", err)
	}
	return out, nil
}

// StatsByReferrerEmail aggregates the prescriber's referral counts by status.
func (r *Repository) StatsByReferrerEmail(ctx context.Context, email string) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'contacted'),
			count(*) FILTER (WHERE status = 'booked'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'cancelled')
		FROM referrals WHERE referrer_email = $1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&s.Total, &s.Pending, &s.Contacted, &s.Booked, &s.Completed, &s.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("referrals: stats: %w", err)
	}
	return &s, nil
}

// MarkBooked records that the referred patient completed a booking.
func (r *Repository) MarkBooked(ctx context.Context, referralID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE referrals
		SET status = 'booked', booking_completed_at = now(), updated_at = now()
		WHERE referral_id = $1 AND status IN ('pending', 'contacted')`,
		referralID)
	if err != nil {
		return fmt.Errorf("referrals: mark booked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	var status string
	if err := row.Scan(&ref.ID, &ref.ReferralID, &ref.BookingToken, &ref.PatientName,
		&ref.PatientEmail, &ref.PatientPhone, &ref.ReferrerName, &ref.ReferrerEmail,
		&ref.ReferrerAHPRA, &ref.Condition, &ref.Urgency, &status,
		&ref.BookingCompletedAt, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
		return nil, err
	}
	ref.Status = Status(status)
	return &ref, nil
}
