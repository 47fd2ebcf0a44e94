package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores leads in the relational database.
type Repository struct {
	db querier
}

func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

const leadColumns = `id, name, email, COALESCE(phone, ''), COALESCE(profession, ''),
	COALESCE(practice, ''), COALESCE(source, ''), engagement_score, last_activity_at, created_at`

// Upsert inserts the lead or, when the email is already known, refreshes the
// contact details and bumps the engagement score by 5.
func (r *Repository) Upsert(ctx context.Context, req *CreateLeadRequest) (*Lead, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	row := r.db.QueryRow(ctx, `
		INSERT INTO leads (name, email, phone, profession, practice, source)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = COALESCE(EXCLUDED.phone, leads.phone),
			profession = COALESCE(EXCLUDED.profession, leads.profession),
			practice = COALESCE(EXCLUDED.practice, leads.practice),
			engagement_score = leads.engagement_score + 5,
			last_activity_at = now()
		RETURNING `+leadColumns+`, (xmax = 0) AS inserted`,
		req.Name, email, req.Phone, req.Profession, req.Practice, req.Source)

	var lead Lead
	var inserted bool
	if err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Profession,
		&lead.Practice, &lead.Source, &lead.EngagementScore, &lead.LastActivityAt,
		&lead.CreatedAt, &inserted); err != nil {
		return nil, false, fmt.Errorf("leads: upsert failed: %w", err)
	}
	return &lead, inserted, nil
}

// GetByEmail fetches a lead by its email key.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Lead, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))

	var lead Lead
	err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Profession,
		&lead.Practice, &lead.Source, &lead.EngagementScore, &lead.LastActivityAt, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &lead, nil
}
