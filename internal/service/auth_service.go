package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"care4kids/internal/models"
	"care4kids/internal/utils"
)

// Authentication failures share one sentinel so responses never reveal
// whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidToken means the presented token is unknown or expired
var ErrInvalidToken = errors.New("invalid or expired token")

// AccountStore is the identity-store surface for parent accounts
type AccountStore interface {
	Create(username, email, fullName, passwordHash, familyID, role string) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
	GetByID(id int64) (*models.Account, error)
	UsernameExists(username string) (bool, error)
	SetFamilyID(accountID int64, familyID string) error
}

// TokenStore persists opaque auth tokens
type TokenStore interface {
	Create(token string, accountID int64, expiresAt time.Time) (*models.Token, error)
	Get(token string) (*models.Token, error)
	Delete(token string) error
	DeleteExpired() error
}

// AuthService handles parent registration, login and token validation
type AuthService struct {
	accounts      AccountStore
	tokens        TokenStore
	coordinator   *Coordinator
	tokenDuration time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(accounts AccountStore, tokens TokenStore, coordinator *Coordinator, tokenDuration time.Duration) *AuthService {
	return &AuthService{
		accounts:      accounts,
		tokens:        tokens,
		coordinator:   coordinator,
		tokenDuration: tokenDuration,
	}
}

// Register creates a primary parent account and its family document.
// The account row is committed first; only then is the family document
// created and the family id written back to the account. A document-store
// failure surfaces as ErrStoreUnavailable with the account left intact.
func (s *AuthService) Register(ctx context.Context, email, fullName, password, passwordConfirm string) (*models.Account, *models.Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := utils.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateName("full_name", fullName); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, nil, err
	}
	if password != passwordConfirm {
		return nil, nil, models.ValidationError{Field: "password_confirm", Message: "passwords do not match"}
	}

	existing, err := s.accounts.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: an account with this email already exists", models.ErrConflict)
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	username, err := DeriveUsername(s.accounts, email)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.Create(username, email, strings.TrimSpace(fullName), passwordHash, "", models.RolePrimary)
	if err != nil {
		return nil, nil, err
	}

	familyID, err := s.coordinator.CreateFamily(ctx, account)
	if err != nil {
		// The account exists but has no family document yet. Report the
		// outage instead of rolling back the identity write.
		return nil, nil, err
	}

	if err := s.accounts.SetFamilyID(account.ID, familyID); err != nil {
		return nil, nil, fmt.Errorf("failed to assign family: %w", err)
	}
	account.FamilyID = familyID

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, nil, err
	}
	return account, token, nil
}

// Login verifies credentials and issues a fresh token
func (s *AuthService) Login(email, password string) (*models.Account, *models.Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accounts.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil || !utils.CheckPassword(password, account.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, nil, err
	}
	return account, token, nil
}

// Logout revokes a token. Revoking an unknown token is not an error.
func (s *AuthService) Logout(token string) error {
	return s.tokens.Delete(token)
}

// Authenticate resolves a token to its account. Expired tokens are deleted
// on sight.
func (s *AuthService) Authenticate(token string) (*models.Account, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	stored, err := s.tokens.Get(token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if stored == nil {
		return nil, ErrInvalidToken
	}
	if stored.IsExpired() {
		if err := s.tokens.Delete(token); err != nil {
			log.Printf("Failed to delete expired token: %v", err)
		}
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetByID(stored.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidToken
	}
	return account, nil
}

// CleanupExpiredTokens removes tokens past their expiry
func (s *AuthService) CleanupExpiredTokens() error {
	return s.tokens.DeleteExpired()
}

func (s *AuthService) issueToken(accountID int64) (*models.Token, error) {
	value, err := utils.GenerateAuthToken()
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Create(value, accountID, time.Now().Add(s.tokenDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// DeriveUsername builds a unique username from the local part of an email
// address, appending a numeric suffix on collision.
func DeriveUsername(accounts AccountStore, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}
	base = strings.ToLower(base)

	candidate := base
	for i := 1; ; i++ {
		taken, err := accounts.UsernameExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		if i > 1000 {
			return "", fmt.Errorf("unable to derive a unique username for %s", email)
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
