package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/systems-marketplace-payments/internal/domain/access"
)

const (
	// AccessGrantCollectionName is the name of the access grant collection in MongoDB
	AccessGrantCollectionName = "system_access"
)

// grantDocument is the stored form of a grant, keyed by buyer and system
type grantDocument struct {
	Key          string `bson:"_id"`
	access.Grant `bson:",inline"`
}

// AccessGrantRepository implements the access.Repository interface for MongoDB
type AccessGrantRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAccessGrantRepository creates a new MongoDB access grant repository
func NewAccessGrantRepository(logger *slog.Logger, db *mongo.Database) access.Repository {
	return &AccessGrantRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the grant, replacing any existing grant for the same buyer and system
func (r *AccessGrantRepository) Upsert(ctx context.Context, grant *access.Grant) error {
	collection := r.db.Collection(AccessGrantCollectionName)

	key := access.Key(grant.BuyerID, grant.SystemID)
	doc := grantDocument{Key: key, Grant: *grant}

	_, err := collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to upsert access grant",
			"grant_key", key,
			"purchase_id", grant.PurchaseID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert access grant: %w", err)
	}

	return nil
}

// Delete removes the grant if it was issued for purchaseID. A grant that is
// missing or that a later purchase replaced is left alone without error.
func (r *AccessGrantRepository) Delete(ctx context.Context, buyerID, systemID string, purchaseID uuid.UUID) error {
	collection := r.db.Collection(AccessGrantCollectionName)

	key := access.Key(buyerID, systemID)
	result, err := collection.DeleteOne(ctx, bson.M{"_id": key, "purchase_id": purchaseID})
	if err != nil {
		r.logger.Error("Failed to delete access grant",
			"grant_key", key,
			"purchase_id", purchaseID.String(),
			"error", err)
		return fmt.Errorf("failed to delete access grant: %w", err)
	}

	if result.DeletedCount == 0 {
		r.logger.Debug("Access grant absent or held by another purchase",
			"grant_key", key,
			"purchase_id", purchaseID.String())
	}

	return nil
}

// Get retrieves the grant a buyer holds for a system.
// Returns ErrGrantNotFound if there is none.
func (r *AccessGrantRepository) Get(ctx context.Context, buyerID, systemID string) (*access.Grant, error) {
	collection := r.db.Collection(AccessGrantCollectionName)

	key := access.Key(buyerID, systemID)
	var doc grantDocument
	if err := collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, access.ErrGrantNotFound{BuyerID: buyerID, SystemID: systemID}
		}
		r.logger.Error("Failed to get access grant",
			"grant_key", key,
			"error", err)
		return nil, fmt.Errorf("failed to get access grant: %w", err)
	}

	return &doc.Grant, nil
}
