package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

// Entry is one append-only audit record. UserID is nil for unauthenticated
// actions such as webhook deliveries.
type Entry struct {
	ID           int64           `json:"id"`
	UserID       *int64          `json:"userId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	IPAddress    string          `json:"ipAddress,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store writes and reads the audit trail.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Log writes one audit entry.
func (s *Store) Log(ctx context.Context, e Entry) error {
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (user_id, action, resource_type, resource_id, metadata, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.UserID, e.Action, e.ResourceType, nullString(e.ResourceID),
		[]byte(metadata), nullString(e.IPAddress), nullString(e.UserAgent))
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// LogAction writes an audit entry and only logs on failure. Audit writes
// never fail the business operation they describe.
func (s *Store) LogAction(ctx context.Context, e Entry) {
	if err := s.Log(ctx, e); err != nil {
		s.logger.Error("audit write failed", "action", e.Action, "error", err)
	}
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	UserID       int64
	Action       string
	ResourceType string
	Limit        int
}

// Query returns matching audit entries, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, user_id, action, resource_type,
		COALESCE(resource_id, ''), metadata,
		COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs WHERE 1=1`
	var args []any
	n := 0
	if f.UserID != 0 {
		n++
		query += fmt.Sprintf(" AND user_id = $%d", n)
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		n++
		query += fmt.Sprintf(" AND action = $%d", n)
		args = append(args, f.Action)
	}
	if f.ResourceType != "" {
		n++
		query += fmt.Sprintf(" AND resource_type = $%d", n)
		args = append(args, f.ResourceType)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var userID sql.NullInt64
		var metadata []byte
		if err := rows.Scan(&e.ID, &userID, &e.Action, &e.ResourceType,
			&e.ResourceID, &metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		e.Metadata = json.RawMessage(metadata)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
