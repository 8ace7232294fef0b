package access

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Grant entitles a buyer to use a purchased system. It mirrors a completed
// purchase and is removed when that purchase is refunded.
type Grant struct {
	BuyerID        string    `json:"buyer_id" bson:"buyer_id"`
	SystemID       string    `json:"system_id" bson:"system_id"`
	PurchaseID     uuid.UUID `json:"purchase_id" bson:"purchase_id"`
	CreatorID      string    `json:"creator_id" bson:"creator_id"`
	SystemName     string    `json:"system_name" bson:"system_name"`
	PurchasedAt    time.Time `json:"purchased_at" bson:"purchased_at"`
	CanApplyToBets bool      `json:"can_apply_to_bets" bson:"can_apply_to_bets"`
}

// Key is the storage key of a grant: one per buyer and system
func Key(buyerID, systemID string) string {
	return buyerID + ":" + systemID
}

// Repository stores grants. Upsert and Delete are idempotent.
// Delete only removes the grant while it still belongs to the given purchase.
type Repository interface {
	Upsert(ctx context.Context, grant *Grant) error
	Delete(ctx context.Context, buyerID, systemID string, purchaseID uuid.UUID) error
	Get(ctx context.Context, buyerID, systemID string) (*Grant, error)
}

// ErrGrantNotFound indicates the buyer holds no grant for the system
type ErrGrantNotFound struct {
	BuyerID  string
	SystemID string
}

func (e ErrGrantNotFound) Error() string {
	return "access grant not found: " + Key(e.BuyerID, e.SystemID)
}

func (e ErrGrantNotFound) Is(target error) bool {
	t, ok := target.(ErrGrantNotFound)
	if !ok {
		return false
	}
	if t.BuyerID == "" && t.SystemID == "" {
		return true
	}
	return e.BuyerID == t.BuyerID && e.SystemID == t.SystemID
}
