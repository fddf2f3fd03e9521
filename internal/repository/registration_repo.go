package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"care4kids/internal/database"
	"care4kids/internal/models"
)

// RegistrationRepository handles identity-store operations for child
// registration codes. The open device_info map is stored as a JSON column.
type RegistrationRepository struct {
	db *database.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a new pending child registration. A concurrent issue for
// the same (child, family) pair surfaces as models.ErrConflict.
func (r *RegistrationRepository) Create(code, childName, familyID string, createdBy int64, expiresAt time.Time, deviceInfo map[string]any) (*models.ChildRegistration, error) {
	if deviceInfo == nil {
		deviceInfo = map[string]any{}
	}
	infoJSON, err := json.Marshal(deviceInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode device info: %w", err)
	}

	query := `
		INSERT INTO child_registrations (code, child_name, family_id, created_by, status, expires_at, device_info)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)
	`
	id, err := r.db.ExecReturningID(query, code, childName, familyID, createdBy, expiresAt, string(infoJSON))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a pending registration already exists", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create child registration: %w", err)
	}

	return &models.ChildRegistration{
		ID:         id,
		Code:       code,
		ChildName:  childName,
		FamilyID:   familyID,
		CreatedBy:  createdBy,
		Status:     models.RegistrationPending,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
		DeviceInfo: deviceInfo,
	}, nil
}

// GetPendingByCode retrieves the pending registration holding a code
func (r *RegistrationRepository) GetPendingByCode(code string) (*models.ChildRegistration, error) {
	query := `
		SELECT id, code, child_name, family_id, created_by, status,
		       created_at, expires_at, used_at, device_info
		FROM child_registrations
		WHERE code = ? AND status = 'pending'
	`
	return r.scanOne(r.db.QueryRow(query, code))
}

// CancelPending supersedes any live registrations for (child, family)
func (r *RegistrationRepository) CancelPending(childName, familyID string) (int64, error) {
	query := `
		UPDATE child_registrations SET status = 'cancelled'
		WHERE child_name = ? AND family_id = ? AND status = 'pending'
	`
	result, err := r.db.Exec(query, childName, familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending registrations: %w", err)
	}
	return result.RowsAffected()
}

// MarkExpired transitions a pending registration to expired (atomic guard,
// same contract as InvitationRepository.MarkExpired)
func (r *RegistrationRepository) MarkExpired(id int64) (bool, error) {
	query := "UPDATE child_registrations SET status = 'expired' WHERE id = ? AND status = 'pending'"
	result, err := r.db.Exec(query, id)
	if err != nil {
		return false, fmt.Errorf("failed to expire registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read expire result: %w", err)
	}
	return rows > 0, nil
}

// MarkUsed transitions a pending registration to used, writing the merged
// device_info in the same statement so the loser of a concurrent redeem
// cannot clobber the winner's device record.
func (r *RegistrationRepository) MarkUsed(id int64, at time.Time, deviceInfo map[string]any) (bool, error) {
	infoJSON, err := json.Marshal(deviceInfo)
	if err != nil {
		return false, fmt.Errorf("failed to encode device info: %w", err)
	}

	query := `
		UPDATE child_registrations SET status = 'used', used_at = ?, device_info = ?
		WHERE id = ? AND status = 'pending'
	`
	result, err := r.db.Exec(query, at, string(infoJSON), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark registration used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read redeem result: %w", err)
	}
	return rows > 0, nil
}

// ListByCreator retrieves all registrations created by an account, newest first
func (r *RegistrationRepository) ListByCreator(accountID int64) ([]models.ChildRegistration, error) {
	query := `
		SELECT id, code, child_name, family_id, created_by, status,
		       created_at, expires_at, used_at, device_info
		FROM child_registrations
		WHERE created_by = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var regs []models.ChildRegistration
	for rows.Next() {
		reg, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}

	return regs, rows.Err()
}

// ExpireOverdue sweeps all pending registrations past their TTL
func (r *RegistrationRepository) ExpireOverdue(now time.Time) (int64, error) {
	query := "UPDATE child_registrations SET status = 'expired' WHERE status = 'pending' AND expires_at < ?"
	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue registrations: %w", err)
	}
	return result.RowsAffected()
}

// IsCodePending checks whether a code is currently held by a pending registration
func (r *RegistrationRepository) IsCodePending(code string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM child_registrations WHERE code = ? AND status = 'pending'"
	if err := r.db.QueryRow(query, code).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check registration code: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RegistrationRepository) scanOne(row *sql.Row) (*models.ChildRegistration, error) {
	reg, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return reg, err
}

func (r *RegistrationRepository) scanRow(row rowScanner) (*models.ChildRegistration, error) {
	reg := &models.ChildRegistration{}
	var usedAt sql.NullTime
	var infoJSON string
	err := row.Scan(
		&reg.ID, &reg.Code, &reg.ChildName, &reg.FamilyID, &reg.CreatedBy,
		&reg.Status, &reg.CreatedAt, &reg.ExpiresAt, &usedAt, &infoJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}

	if usedAt.Valid {
		reg.UsedAt = &usedAt.Time
	}
	if infoJSON != "" {
		if err := json.Unmarshal([]byte(infoJSON), &reg.DeviceInfo); err != nil {
			return nil, fmt.Errorf("failed to decode device info: %w", err)
		}
	}
	if reg.DeviceInfo == nil {
		reg.DeviceInfo = map[string]any{}
	}

	return reg, nil
}
