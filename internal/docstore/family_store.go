// Package docstore implements the family document store on MongoDB.
// The aggregate here is a rendered view; the SQL identity store stays
// authoritative and the coordinator is the only writer.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"care4kids/internal/models"
)

const familiesCollection = "families"

// Connect builds the document-store client handle. The handle is owned by
// the process and passed into the coordinator at startup; there is no
// package-level singleton.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	return client, nil
}

// FamilyStore persists family documents in the families collection
type FamilyStore struct {
	col *mongo.Collection
}

// NewFamilyStore creates a family store bound to a database on the given client
func NewFamilyStore(client *mongo.Client, database string) *FamilyStore {
	return &FamilyStore{col: client.Database(database).Collection(familiesCollection)}
}

// EnsureIndexes creates the unique index on family_id. Create-exactly-once
// is enforced here, not by a read-before-write.
func (s *FamilyStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "family_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create family index: %w", err)
	}
	return nil
}

// CreateFamily inserts a new family document
func (s *FamilyStore) CreateFamily(ctx context.Context, doc models.FamilyDocument) error {
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("family document %s already exists: %w", doc.FamilyID, err)
		}
		return fmt.Errorf("failed to create family document: %w", err)
	}
	return nil
}

// AppendParent pushes a parent summary onto a family document. Idempotent by
// parent_id: the filter excludes documents that already contain the summary,
// so a retried append after a partial failure is a no-op.
func (s *FamilyStore) AppendParent(ctx context.Context, familyID string, parent models.ParentSummary) error {
	filter := bson.M{
		"family_id":         familyID,
		"parents.parent_id": bson.M{"$ne": parent.ParentID},
	}
	update := bson.M{
		"$push": bson.M{"parents": parent},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append parent to family %s: %w", familyID, err)
	}
	if result.MatchedCount == 0 {
		return s.requireFamily(ctx, familyID)
	}
	return nil
}

// AppendChild pushes a child summary onto a family document, idempotent by child_id
func (s *FamilyStore) AppendChild(ctx context.Context, familyID string, child models.ChildSummary) error {
	filter := bson.M{
		"family_id":         familyID,
		"children.child_id": bson.M{"$ne": child.ChildID},
	}
	update := bson.M{
		"$push": bson.M{"children": child},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append child to family %s: %w", familyID, err)
	}
	if result.MatchedCount == 0 {
		return s.requireFamily(ctx, familyID)
	}
	return nil
}

// Get retrieves a family document by family_id, nil if absent
func (s *FamilyStore) Get(ctx context.Context, familyID string) (*models.FamilyDocument, error) {
	var doc models.FamilyDocument
	err := s.col.FindOne(ctx, bson.M{"family_id": familyID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family document: %w", err)
	}
	return &doc, nil
}

// requireFamily distinguishes "append already applied" (fine) from "family
// document missing" (a real error) after an unmatched idempotent update.
func (s *FamilyStore) requireFamily(ctx context.Context, familyID string) error {
	count, err := s.col.CountDocuments(ctx, bson.M{"family_id": familyID})
	if err != nil {
		return fmt.Errorf("failed to verify family %s: %w", familyID, err)
	}
	if count == 0 {
		return fmt.Errorf("family document %s not found", familyID)
	}
	return nil
}
