package repository

import (
	"database/sql"
	"fmt"
	"time"

	"care4kids/internal/database"
	"care4kids/internal/models"
)

// TokenRepository handles identity-store operations for auth tokens
type TokenRepository struct {
	db *database.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new auth token for an account
func (r *TokenRepository) Create(token string, accountID int64, expiresAt time.Time) (*models.Token, error) {
	query := "INSERT INTO auth_tokens (token, account_id, expires_at) VALUES (?, ?, ?)"
	_, err := r.db.Exec(query, token, accountID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &models.Token{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// Get retrieves a token by its value
func (r *TokenRepository) Get(token string) (*models.Token, error) {
	query := "SELECT token, account_id, expires_at, created_at FROM auth_tokens WHERE token = ?"
	t := &models.Token{}
	err := r.db.QueryRow(query, token).Scan(&t.Token, &t.AccountID, &t.ExpiresAt, &t.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return t, nil
}

// Delete removes a token
func (r *TokenRepository) Delete(token string) error {
	_, err := r.db.Exec("DELETE FROM auth_tokens WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired tokens
func (r *TokenRepository) DeleteExpired() error {
	_, err := r.db.Exec("DELETE FROM auth_tokens WHERE expires_at < ?", time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return nil
}
