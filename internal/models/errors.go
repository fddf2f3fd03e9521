package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the lifecycle services and the HTTP layer.
// Services wrap these with context; handlers map them to status codes
// via errors.Is.
var (
	// ErrNotFound means no pending record matches the given code
	ErrNotFound = errors.New("no matching pending code")

	// ErrExpired means the code was pending but past its TTL; the failing
	// check itself transitions the record to expired
	ErrExpired = errors.New("code has expired")

	// ErrConflict means a duplicate account email/username, or a live pending
	// record already exists for the same logical key
	ErrConflict = errors.New("conflicting record already exists")

	// ErrCodeSpaceExhausted means the code generator ran out of retry attempts
	ErrCodeSpaceExhausted = errors.New("unable to generate a unique code")

	// ErrStoreUnavailable means the document store stayed unreachable after
	// bounded retries; the identity-store state is left intact
	ErrStoreUnavailable = errors.New("family document store unavailable")
)

// ValidationError represents malformed caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
