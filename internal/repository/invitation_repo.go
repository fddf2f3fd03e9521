package repository

import (
	"database/sql"
	"fmt"
	"time"

	"care4kids/internal/database"
	"care4kids/internal/models"
)

// InvitationRepository handles identity-store operations for family invitations
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create inserts a new pending invitation. A concurrent issue for the same
// (email, family) pair loses against the partial unique index and surfaces
// as models.ErrConflict.
func (r *InvitationRepository) Create(code, email string, invitedBy int64, familyID string, expiresAt time.Time) (*models.Invitation, error) {
	query := `
		INSERT INTO invitations (code, invited_email, invited_by, family_id, status, expires_at)
		VALUES (?, ?, ?, ?, 'pending', ?)
	`
	id, err := r.db.ExecReturningID(query, code, email, invitedBy, familyID, expiresAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a pending invitation already exists", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return &models.Invitation{
		ID:           id,
		Code:         code,
		InvitedEmail: email,
		InvitedBy:    invitedBy,
		FamilyID:     familyID,
		Status:       models.InvitationPending,
		CreatedAt:    time.Now(),
		ExpiresAt:    expiresAt,
	}, nil
}

// GetPendingByCode retrieves the pending invitation holding a code, with the
// inviter's name joined in. Terminal rows never match.
func (r *InvitationRepository) GetPendingByCode(code string) (*models.Invitation, error) {
	query := `
		SELECT i.id, i.code, i.invited_email, i.invited_by, i.family_id, i.status,
		       i.created_at, i.expires_at, i.accepted_at, a.full_name
		FROM invitations i
		INNER JOIN accounts a ON i.invited_by = a.id
		WHERE i.code = ? AND i.status = 'pending'
	`
	inv := &models.Invitation{}
	var acceptedAt sql.NullTime
	err := r.db.QueryRow(query, code).Scan(
		&inv.ID, &inv.Code, &inv.InvitedEmail, &inv.InvitedBy, &inv.FamilyID,
		&inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &acceptedAt, &inv.InviterName,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return inv, nil
}

// CancelPending supersedes any live invitations for (email, family),
// transitioning them to cancelled. Returns how many rows were cancelled.
func (r *InvitationRepository) CancelPending(email, familyID string) (int64, error) {
	query := `
		UPDATE invitations SET status = 'cancelled'
		WHERE invited_email = ? AND family_id = ? AND status = 'pending'
	`
	result, err := r.db.Exec(query, email, familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending invitations: %w", err)
	}
	return result.RowsAffected()
}

// MarkExpired transitions a pending invitation to expired. The status guard
// makes the lazy expiry check-and-transition atomic: it reports false when
// another caller already moved the row out of pending.
func (r *InvitationRepository) MarkExpired(id int64) (bool, error) {
	query := "UPDATE invitations SET status = 'expired' WHERE id = ? AND status = 'pending'"
	result, err := r.db.Exec(query, id)
	if err != nil {
		return false, fmt.Errorf("failed to expire invitation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read expire result: %w", err)
	}
	return rows > 0, nil
}

// MarkAccepted transitions a pending invitation to accepted with a timestamp.
// Same guard as MarkExpired; the loser of a concurrent accept gets false.
func (r *InvitationRepository) MarkAccepted(id int64, at time.Time) (bool, error) {
	query := "UPDATE invitations SET status = 'accepted', accepted_at = ? WHERE id = ? AND status = 'pending'"
	result, err := r.db.Exec(query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to accept invitation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read accept result: %w", err)
	}
	return rows > 0, nil
}

// ListByInviter retrieves all invitations sent by an account, newest first.
// Terminal rows are retained as history and included.
func (r *InvitationRepository) ListByInviter(accountID int64) ([]models.Invitation, error) {
	query := `
		SELECT id, code, invited_email, invited_by, family_id, status,
		       created_at, expires_at, accepted_at
		FROM invitations
		WHERE invited_by = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		var acceptedAt sql.NullTime
		if err := rows.Scan(
			&inv.ID, &inv.Code, &inv.InvitedEmail, &inv.InvitedBy, &inv.FamilyID,
			&inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &acceptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		if acceptedAt.Valid {
			inv.AcceptedAt = &acceptedAt.Time
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// ExpireOverdue sweeps all pending invitations past their TTL. Optional
// housekeeping; lazy expiry at access time remains authoritative.
func (r *InvitationRepository) ExpireOverdue(now time.Time) (int64, error) {
	query := "UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND expires_at < ?"
	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue invitations: %w", err)
	}
	return result.RowsAffected()
}

// IsCodePending checks whether a code is currently held by a pending invitation
func (r *InvitationRepository) IsCodePending(code string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM invitations WHERE code = ? AND status = 'pending'"
	if err := r.db.QueryRow(query, code).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check invitation code: %w", err)
	}
	return count > 0, nil
}
