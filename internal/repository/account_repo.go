package repository

import (
	"database/sql"
	"fmt"
	"time"

	"care4kids/internal/database"
	"care4kids/internal/models"
)

// AccountRepository handles identity-store operations for parent accounts
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, email, full_name, password_hash, COALESCE(phone, ''), COALESCE(family_id, ''), role, is_verified, created_at, updated_at`

// Create inserts a new account. A duplicate email or username surfaces as
// models.ErrConflict; the unique constraints are the authority, not a
// preceding read.
func (r *AccountRepository) Create(username, email, fullName, passwordHash, familyID, role string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (username, email, full_name, password_hash, family_id, role)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var famArg interface{}
	if familyID != "" {
		famArg = familyID
	}
	id, err := r.db.ExecReturningID(query, username, email, fullName, passwordHash, famArg, role)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: account with this email or username", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &models.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		FamilyID:     familyID,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}, nil
}

// GetByEmail retrieves an account by email address
func (r *AccountRepository) GetByEmail(email string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE email = ?"
	return r.scanOne(r.db.QueryRow(query, email))
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(id int64) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// UsernameExists checks whether a username is already taken
func (r *AccountRepository) UsernameExists(username string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// SetFamilyID assigns a family to an account. Used once, right after the
// family document for a new primary account has been created.
func (r *AccountRepository) SetFamilyID(accountID int64, familyID string) error {
	query := "UPDATE accounts SET family_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := r.db.Exec(query, familyID, accountID)
	if err != nil {
		return fmt.Errorf("failed to set family id: %w", err)
	}
	return nil
}

// SetVerified updates the mutable verified flag
func (r *AccountRepository) SetVerified(accountID int64, verified bool) error {
	query := "UPDATE accounts SET is_verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := r.db.Exec(query, verified, accountID)
	if err != nil {
		return fmt.Errorf("failed to set verified flag: %w", err)
	}
	return nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.FullName,
		&account.PasswordHash,
		&account.Phone,
		&account.FamilyID,
		&account.Role,
		&account.IsVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}
