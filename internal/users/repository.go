package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/clinic-booking-platform/internal/identity"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("users: not found")

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads users from Postgres.
type Repository struct {
	db querier
}

func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, COALESCE(phone, ''), role,
	COALESCE(ahpra_number, ''), COALESCE(specialization, ''), created_at, updated_at`

// GetByID fetches a single user.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: get by id: %w", err)
	}
	return u, nil
}

// ListClinicians returns all bookable clinicians ordered by name.
func (r *Repository) ListClinicians(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY name`,
		string(identity.RoleClinician))
	if err != nil {
		return nil, fmt.Errorf("users: list clinicians: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan clinician: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list clinicians rows: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role,
		&u.AHPRANumber, &u.Specialization, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = identity.Role(role)
	return &u, nil
}
