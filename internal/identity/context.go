package identity

import "context"

// Role classifies a platform user.
type Role string

const (
	RolePatient   Role = "patient"
	RoleClinician Role = "clinician"
	RoleAdmin     Role = "admin"
)

// User is the authenticated principal attached to a request.
type User struct {
	ID    int64
	Role  Role
	Email string
	Name  string
}

type ctxKey string

const userKey ctxKey = "clinic.user"

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext extracts the authenticated user if present.
func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(userKey)
	if val == nil {
		return User{}, false
	}
	u, ok := val.(User)
	return u, ok && u.ID != 0
}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RolePatient, RoleClinician, RoleAdmin:
		return true
	}
	return false
}
