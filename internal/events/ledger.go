package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ledger statuses. A row is born processing and settles as completed or
// failed; completed rows are never reprocessed, failed rows may be reclaimed
// on redelivery.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Record is one row of the processed-webhook ledger.
type Record struct {
	ID           int64
	Provider     string
	EventID      string
	EventType    string
	Status       string
	Payload      []byte
	ReceivedAt   time.Time
	ProcessedAt  *time.Time
	ErrorMessage string
}

// Outcome of claiming an event id.
type Outcome int

const (
	// Claimed means this delivery owns the event and must process it.
	Claimed Outcome = iota
	// AlreadyCompleted means a previous delivery finished this event.
	AlreadyCompleted
	// InFlight means another delivery is processing the event right now.
	InFlight
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger persists at-most-once processing state per (provider, event id).
type Ledger struct {
	db querier
}

func NewLedger(db querier) *Ledger {
	return &Ledger{db: db}
}

// Begin claims the event for processing. The unique index on
// (provider, event_id) arbitrates concurrent deliveries: the loser of the
// insert race reads the winner's row instead of processing twice.
func (l *Ledger) Begin(ctx context.Context, provider, eventID, eventType string, payload []byte) (Outcome, error) {
	_, err := l.db.Exec(ctx, `
		INSERT INTO processed_webhook_events (provider, event_id, event_type, status, payload)
		VALUES ($1, $2, $3, 'processing', $4)`,
		provider, eventID, eventType, payload)
	if err == nil {
		return Claimed, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return InFlight, fmt.Errorf("events: claim %s/%s: %w", provider, eventID, err)
	}

	var status string
	err = l.db.QueryRow(ctx, `
		SELECT status FROM processed_webhook_events
		WHERE provider = $1 AND event_id = $2`, provider, eventID).Scan(&status)
	if err != nil {
		return InFlight, fmt.Errorf("events: read existing %s/%s: %w", provider, eventID, err)
	}

	switch status {
	case StatusCompleted:
		return AlreadyCompleted, nil
	case StatusFailed:
		// Reclaim only if the row is still failed; a concurrent redelivery
		// may win this update instead.
		tag, err := l.db.Exec(ctx, `
			UPDATE processed_webhook_events
			SET status = 'processing', error_message = NULL, processed_at = NULL
			WHERE provider = $1 AND event_id = $2 AND status = 'failed'`,
			provider, eventID)
		if err != nil {
			return InFlight, fmt.Errorf("events: reclaim %s/%s: %w", provider, eventID, err)
		}
		if tag.RowsAffected() == 1 {
			return Claimed, nil
		}
		return InFlight, nil
	default:
		return InFlight, nil
	}
}

// MarkCompleted settles the event as done.
func (l *Ledger) MarkCompleted(ctx context.Context, provider, eventID string) error {
	_, err := l.db.Exec(ctx, `
		UPDATE processed_webhook_events
		SET status = 'completed', processed_at = now(), error_message = NULL
		WHERE provider = $1 AND event_id = $2`, provider, eventID)
	if err != nil {
		return fmt.Errorf("events: mark completed %s/%s: %w", provider, eventID, err)
	}
	return nil
}

// MarkFailed settles the event as failed so a redelivery can reclaim it.
func (l *Ledger) MarkFailed(ctx context.Context, provider, eventID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := l.db.Exec(ctx, `
		UPDATE processed_webhook_events
		SET status = 'failed', processed_at = now(), error_message = $3
		WHERE provider = $1 AND event_id = $2`, provider, eventID, msg)
	if err != nil {
		return fmt.Errorf("events: mark failed %s/%s: %w", provider, eventID, err)
	}
	return nil
}

// Get reads one ledger row, mainly for operational inspection.
func (l *Ledger) Get(ctx context.Context, provider, eventID string) (*Record, error) {
	var r Record
	err := l.db.QueryRow(ctx, `
		SELECT id, provider, event_id, event_type, status, payload,
			received_at, processed_at, COALESCE(error_message, '')
		FROM processed_webhook_events
		WHERE provider = $1 AND event_id = $2`, provider, eventID).
		Scan(&r.ID, &r.Provider, &r.EventID, &r.EventType, &r.Status,
			&r.Payload, &r.ReceivedAt, &r.ProcessedAt, &r.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("events: get %s/%s: %w", provider, eventID, err)
	}
	return &r, nil
}
