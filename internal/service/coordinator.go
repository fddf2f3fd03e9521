package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"care4kids/internal/models"
)

// FamilyDocumentStore is the document-store side of the two-store design.
// Appends must be idempotent by the embedded id so the coordinator can
// retry them blindly.
type FamilyDocumentStore interface {
	CreateFamily(ctx context.Context, doc models.FamilyDocument) error
	AppendParent(ctx context.Context, familyID string, parent models.ParentSummary) error
	AppendChild(ctx context.Context, familyID string, child models.ChildSummary) error
	Get(ctx context.Context, familyID string) (*models.FamilyDocument, error)
}

// Coordinator sequences writes across the identity store and the document
// store. The two stores share no transaction; the rules that keep them
// consistent are:
//
//  1. the identity-store write commits before any document append is attempted,
//  2. document appends are idempotent and retried with backoff on failure,
//  3. a failed append is reported as ErrStoreUnavailable and never answered
//     by rolling back the identity store.
//
// There is deliberately no compensating rollback: the identity store stays
// authoritative and a later retry of the append converges the document.
type Coordinator struct {
	store       FamilyDocumentStore
	maxAttempts int
	backoff     time.Duration
}

// NewCoordinator creates a coordinator around a document store handle.
// maxAttempts and backoff bound the retry loop for appends.
func NewCoordinator(store FamilyDocumentStore, maxAttempts int, backoff time.Duration) *Coordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Coordinator{store: store, maxAttempts: maxAttempts, backoff: backoff}
}

// CreateFamily writes the family document for a new primary account. Called
// exactly once per family, at primary-account creation, after the account row
// has been committed. Returns the generated family id.
func (c *Coordinator) CreateFamily(ctx context.Context, owner *models.Account) (string, error) {
	familyID := uuid.New().String()
	now := time.Now()

	doc := models.FamilyDocument{
		FamilyID:       familyID,
		OwnerAccountID: owner.ID,
		Parents:        []models.ParentSummary{ParentSummaryOf(owner, nil)},
		Children:       []models.ChildSummary{},
		FamilySettings: models.DefaultFamilySettings(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := c.withRetry(ctx, "create family", func() error {
		return c.store.CreateFamily(ctx, doc)
	})
	if err != nil {
		return "", err
	}
	return familyID, nil
}

// AppendParent appends a parent summary to a family document, retrying on
// failure. Safe to call again after a partial failure; the store skips
// summaries whose parent_id is already present.
func (c *Coordinator) AppendParent(ctx context.Context, familyID string, parent models.ParentSummary) error {
	return c.withRetry(ctx, "append parent", func() error {
		return c.store.AppendParent(ctx, familyID, parent)
	})
}

// AppendChild appends a child summary to a family document, retrying on failure
func (c *Coordinator) AppendChild(ctx context.Context, familyID string, child models.ChildSummary) error {
	return c.withRetry(ctx, "append child", func() error {
		return c.store.AppendChild(ctx, familyID, child)
	})
}

// GetFamily reads a family document
func (c *Coordinator) GetFamily(ctx context.Context, familyID string) (*models.FamilyDocument, error) {
	doc, err := c.store.Get(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return doc, nil
}

// withRetry runs op up to maxAttempts times with linear backoff. The op must
// be idempotent. After exhaustion the last error is wrapped as
// ErrStoreUnavailable so callers can report it without undoing the
// identity-store write that preceded it.
func (c *Coordinator) withRetry(ctx context.Context, what string, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		log.Printf("Document store %s failed (attempt %d/%d): %v", what, attempt, c.maxAttempts, lastErr)

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, ctx.Err())
		}
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v", models.ErrStoreUnavailable, what, c.maxAttempts, lastErr)
}

// ParentSummaryOf renders the document-store view of an account. joinedAt is
// set for parents who arrive through an invitation and nil for the owner.
func ParentSummaryOf(account *models.Account, joinedAt *time.Time) models.ParentSummary {
	return models.ParentSummary{
		ParentID:  strconv.FormatInt(account.ID, 10),
		AccountID: account.ID,
		FullName:  account.FullName,
		Email:     account.Email,
		Phone:     account.Phone,
		Role:      account.Role,
		Username:  account.Username,
		JoinedAt:  joinedAt,
	}
}
