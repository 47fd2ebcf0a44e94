package leads

import "errors"

var (
	ErrInvalidName  = errors.New("leads: name is required")
	ErrInvalidEmail = errors.New("leads: a valid email is required")
	ErrLeadNotFound = errors.New("leads: not found")
)
