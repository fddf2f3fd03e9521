package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"care4kids/internal/codes"
	"care4kids/internal/models"
	"care4kids/internal/utils"
)

// InvitationStore is the identity-store surface for invitation rows
type InvitationStore interface {
	Create(code, email string, invitedBy int64, familyID string, expiresAt time.Time) (*models.Invitation, error)
	GetPendingByCode(code string) (*models.Invitation, error)
	CancelPending(email, familyID string) (int64, error)
	MarkExpired(id int64) (bool, error)
	MarkAccepted(id int64, at time.Time) (bool, error)
	ListByInviter(accountID int64) ([]models.Invitation, error)
	ExpireOverdue(now time.Time) (int64, error)
}

// CodeSource issues unique short codes
type CodeSource interface {
	Generate(kind codes.Kind) (string, error)
}

// InvitationSender delivers an invitation code to the invited address.
// Delivery is best-effort; a failure never fails the issue operation.
type InvitationSender interface {
	SendInvitation(ctx context.Context, toEmail, inviterName, code string, expiresAt time.Time) error
}

// InvitationService manages the co-parent invitation lifecycle
type InvitationService struct {
	invitations InvitationStore
	accounts    AccountStore
	codegen     CodeSource
	coordinator *Coordinator
	sender      InvitationSender // nil when email delivery is disabled
}

// NewInvitationService creates a new invitation service
func NewInvitationService(invitations InvitationStore, accounts AccountStore, codegen CodeSource, coordinator *Coordinator, sender InvitationSender) *InvitationService {
	return &InvitationService{
		invitations: invitations,
		accounts:    accounts,
		codegen:     codegen,
		coordinator: coordinator,
		sender:      sender,
	}
}

// Issue creates a pending invitation for email in the inviter's family.
// Any prior pending invitation for the same email and family is cancelled
// first, so re-inviting supersedes rather than conflicts.
func (s *InvitationService) Issue(ctx context.Context, inviter *models.Account, email string) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if inviter.FamilyID == "" {
		return nil, models.ValidationError{Field: "family", Message: "inviter has no family"}
	}
	if email == strings.ToLower(inviter.Email) {
		return nil, models.ValidationError{Field: "email", Message: "cannot invite yourself"}
	}

	existing, err := s.accounts.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check invited email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: this email already belongs to an account", models.ErrConflict)
	}

	cancelled, err := s.invitations.CancelPending(email, inviter.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede prior invitation: %w", err)
	}
	if cancelled > 0 {
		log.Printf("Cancelled %d prior pending invitation(s) for %s", cancelled, email)
	}

	code, err := s.codegen.Generate(codes.KindInvitation)
	if err != nil {
		return nil, err
	}

	inv, err := s.invitations.Create(code, email, inviter.ID, inviter.FamilyID, time.Now().Add(models.InvitationTTL))
	if err != nil {
		return nil, err
	}
	inv.InviterName = inviter.FullName

	if s.sender != nil {
		if err := s.sender.SendInvitation(ctx, email, inviter.FullName, code, inv.ExpiresAt); err != nil {
			log.Printf("Failed to send invitation email to %s: %v", email, err)
		}
	}

	return inv, nil
}

// Check looks up a pending invitation by code without consuming it.
// A pending-but-overdue invitation is transitioned to expired by this very
// read and reported as ErrExpired; subsequent checks see ErrNotFound.
func (s *InvitationService) Check(code string) (*models.Invitation, error) {
	return s.lookupPending(code)
}

// Accept redeems an invitation: it creates the secondary parent account in
// the inviter's family, marks the invitation accepted, and appends the new
// parent to the family document. The identity writes commit before the
// document append; an append failure surfaces as ErrStoreUnavailable with
// the account and invitation state intact.
func (s *InvitationService) Accept(ctx context.Context, code, fullName, password, passwordConfirm string) (*models.Account, error) {
	if err := utils.ValidateName("full_name", fullName); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	if password != passwordConfirm {
		return nil, models.ValidationError{Field: "password_confirm", Message: "passwords do not match"}
	}

	inv, err := s.lookupPending(code)
	if err != nil {
		return nil, err
	}

	existing, err := s.accounts.GetByEmail(inv.InvitedEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to check invited email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: this email already belongs to an account", models.ErrConflict)
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	username, err := DeriveUsername(s.accounts, inv.InvitedEmail)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(username, inv.InvitedEmail, strings.TrimSpace(fullName), passwordHash, inv.FamilyID, models.RoleSecondary)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	accepted, err := s.invitations.MarkAccepted(inv.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}
	if !accepted {
		// Lost a race with a concurrent accept or cancel after the lookup
		return nil, models.ErrNotFound
	}

	if err := s.coordinator.AppendParent(ctx, inv.FamilyID, ParentSummaryOf(account, &now)); err != nil {
		return nil, err
	}

	return account, nil
}

// ListByInviter returns all invitations ever issued by an account
func (s *InvitationService) ListByInviter(accountID int64) ([]models.Invitation, error) {
	return s.invitations.ListByInviter(accountID)
}

// ExpireOverdue sweeps pending invitations past their TTL
func (s *InvitationService) ExpireOverdue() (int64, error) {
	return s.invitations.ExpireOverdue(time.Now())
}

func (s *InvitationService) lookupPending(code string) (*models.Invitation, error) {
	code = strings.TrimSpace(code)
	if !codes.IsWellFormed(code) {
		return nil, models.ValidationError{Field: "code", Message: "code must be exactly 6 digits"}
	}

	inv, err := s.invitations.GetPendingByCode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if inv == nil {
		return nil, models.ErrNotFound
	}

	if inv.IsExpired() {
		transitioned, err := s.invitations.MarkExpired(inv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to expire invitation: %w", err)
		}
		if !transitioned {
			// Someone else already moved it out of pending
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: invitation code %s", models.ErrExpired, code)
	}

	return inv, nil
}
