package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

const (
	// PurchaseCollectionName is the name of the purchase collection in MongoDB
	PurchaseCollectionName = "system_purchases"
)

// PurchaseRepository implements the purchase.Repository interface for MongoDB
type PurchaseRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewPurchaseRepository creates a new MongoDB purchase repository
func NewPurchaseRepository(logger *slog.Logger, db *mongo.Database) *PurchaseRepository {
	return &PurchaseRepository{
		db:     db,
		logger: logger,
	}
}

var _ purchase.Repository = (*PurchaseRepository)(nil)

// EnsureIndexes creates the lookup indexes used by confirmation and sweeping
func (r *PurchaseRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(PurchaseCollectionName)

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payment_intent_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_payment_intent"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "last_swept_at", Value: 1}, {Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("status_sweep_order"),
		},
		{
			Keys:    bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("buyer_created_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		r.logger.Error("Failed to create purchase indexes", "error", err)
		return fmt.Errorf("failed to create purchase indexes: %w", err)
	}
	return nil
}

// Create inserts a new purchase record.
// Returns ErrDuplicatePurchase if the id or payment intent is already stored.
func (r *PurchaseRepository) Create(ctx context.Context, record *purchase.Record) error {
	collection := r.db.Collection(PurchaseCollectionName)

	if _, err := collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return purchase.ErrDuplicatePurchase{ID: record.ID}
		}
		r.logger.Error("Failed to create purchase record",
			"purchase_id", record.ID.String(),
			"payment_intent_id", record.PaymentIntentID,
			"error", err)
		return fmt.Errorf("failed to create purchase record: %w", err)
	}

	return nil
}

// GetByID retrieves a purchase record by its id.
// Returns ErrPurchaseNotFound if no record exists.
func (r *PurchaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*purchase.Record, error) {
	record, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, purchase.ErrPurchaseNotFound{ID: id}
		}
		r.logger.Error("Failed to get purchase record",
			"purchase_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get purchase record: %w", err)
	}
	return record, nil
}

func (r *PurchaseRepository) MarkCompleted(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	return r.transition(ctx, id, shared.PurchaseStatusCompleted, shared.PurchaseStatusPendingPayment, bson.M{
		"paid_at":    paidAt,
		"updated_at": paidAt,
	})
}

func (r *PurchaseRepository) ClaimRefund(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, shared.PurchaseStatusRefundPending, shared.PurchaseStatusCompleted, bson.M{
		"updated_at": at,
	})
}

func (r *PurchaseRepository) ReleaseRefund(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, shared.PurchaseStatusCompleted, shared.PurchaseStatusRefundPending, bson.M{
		"updated_at": at,
	})
}

func (r *PurchaseRepository) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, refundedAt time.Time) error {
	return r.transition(ctx, id, shared.PurchaseStatusRefunded, shared.PurchaseStatusRefundPending, bson.M{
		"refund_id":   refundID,
		"refunded_at": refundedAt,
		"updated_at":  refundedAt,
	})
}

// ListStale returns records sitting in status since before olderThan. Never
// swept records sort first (a missing last_swept_at sorts as null), then the
// least recently swept, then the oldest update.
func (r *PurchaseRepository) ListStale(ctx context.Context, status shared.PurchaseStatus, olderThan time.Time, limit int) ([]*purchase.Record, error) {
	collection := r.db.Collection(PurchaseCollectionName)

	filter := bson.M{
		"status":     status,
		"updated_at": bson.M{"$lt": olderThan},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_swept_at", Value: 1}, {Key: "updated_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list stale purchases",
			"status", string(status),
			"error", err)
		return nil, fmt.Errorf("failed to list stale purchases: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*purchase.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode stale purchases",
			"status", string(status),
			"error", err)
		return nil, fmt.Errorf("failed to decode stale purchases: %w", err)
	}

	return records, nil
}

// MarkSwept stamps the sweeper visit on the record
func (r *PurchaseRepository) MarkSwept(ctx context.Context, id uuid.UUID, at time.Time) error {
	collection := r.db.Collection(PurchaseCollectionName)

	_, err := collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_swept_at": at}})
	if err != nil {
		r.logger.Error("Failed to mark purchase swept",
			"purchase_id", id.String(),
			"error", err)
		return fmt.Errorf("failed to mark purchase swept: %w", err)
	}
	return nil
}

// transition moves a record from one status to another in a single
// conditional write. When nothing matches it tells a missing record apart
// from one that is in another status.
func (r *PurchaseRepository) transition(ctx context.Context, id uuid.UUID, to, from shared.PurchaseStatus, set bson.M) error {
	collection := r.db.Collection(PurchaseCollectionName)

	set["status"] = to
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": set}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update purchase status",
			"purchase_id", id.String(),
			"from", string(from),
			"to", string(to),
			"error", err)
		return fmt.Errorf("failed to update purchase status: %w", err)
	}

	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return purchase.ErrStatusConflict{ID: id, Expected: from}
	}

	return nil
}

func (r *PurchaseRepository) findOne(ctx context.Context, filter bson.M) (*purchase.Record, error) {
	collection := r.db.Collection(PurchaseCollectionName)

	var record purchase.Record
	if err := collection.FindOne(ctx, filter).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}
