package models

import "time"

// Account roles. The first parent of a family is primary; parents who join
// through an invitation are secondary.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// Account represents a parent account in the identity store.
// Identity fields are immutable once created; only the verified flag changes.
type Account struct {
	ID           int64
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Phone        string
	FamilyID     string // empty until a family is assigned
	Role         string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token represents an opaque credential token issued at registration or login
type Token struct {
	Token     string
	AccountID int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired
func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
