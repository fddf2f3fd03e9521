package models

import "time"

// Invitation statuses. Pending is the only live state; the rest are terminal
// and rows in them are kept as history.
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationExpired   = "expired"
	InvitationCancelled = "cancelled"
)

// InvitationTTL is how long an invitation code stays redeemable
const InvitationTTL = 7 * 24 * time.Hour

// Invitation represents a pending offer for a co-parent to join a family
type Invitation struct {
	ID           int64
	Code         string
	InvitedEmail string
	InvitedBy    int64
	FamilyID     string
	Status       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AcceptedAt   *time.Time
	InviterName  string // populated via JOIN
}

// IsExpired reports whether a still-pending invitation is past its TTL
func (i *Invitation) IsExpired() bool {
	return i.Status == InvitationPending && time.Now().After(i.ExpiresAt)
}

// DaysRemaining returns the days left before expiry, rounded up so a fresh
// invitation reports the full TTL. Never negative.
func (i *Invitation) DaysRemaining() int {
	d := time.Until(i.ExpiresAt)
	if d <= 0 {
		return 0
	}
	return int((d + 24*time.Hour - 1) / (24 * time.Hour))
}
