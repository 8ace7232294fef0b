package purchase

import (
	"time"

	"github.com/google/uuid"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// Record is a single system purchase. Amounts are fixed at creation and only
// the status fields move afterwards.
type Record struct {
	ID                 uuid.UUID             `json:"id" bson:"_id"`
	BuyerID            string                `json:"buyer_id" bson:"buyer_id"`
	CreatorID          string                `json:"creator_id" bson:"creator_id"`
	SystemID           string                `json:"system_id" bson:"system_id"`
	SystemName         string                `json:"system_name" bson:"system_name"`
	PriceCents         int64                 `json:"price_cents" bson:"price_cents"`
	PlatformFeeCents   int64                 `json:"platform_fee_cents" bson:"platform_fee_cents"`
	TotalAmountCents   int64                 `json:"total_amount_cents" bson:"total_amount_cents"`
	CreatorPayoutCents int64                 `json:"creator_payout_cents" bson:"creator_payout_cents"`
	PlatformFeePercent string                `json:"platform_fee_percent" bson:"platform_fee_percent"` // Rate snapshot, decimal string
	Currency           string                `json:"currency" bson:"currency"`
	ConnectedAccountID string                `json:"connected_account_id" bson:"connected_account_id"` // Payout destination charged against
	PaymentIntentID    string                `json:"payment_intent_id" bson:"payment_intent_id"`
	RefundID           string                `json:"refund_id,omitempty" bson:"refund_id,omitempty"`
	Status             shared.PurchaseStatus `json:"status" bson:"status"`
	CreatedAt          time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at" bson:"updated_at"`
	PaidAt             *time.Time            `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	RefundedAt         *time.Time            `json:"refunded_at,omitempty" bson:"refunded_at,omitempty"`
	LastSweptAt        *time.Time            `json:"-" bson:"last_swept_at,omitempty"` // Set by the sweeper on every visit
}

// IsParty reports whether callerID is the buyer or the creator
func (r *Record) IsParty(callerID string) bool {
	return callerID != "" && (callerID == r.BuyerID || callerID == r.CreatorID)
}

// CheckRefundable verifies the purchase is completed and still inside the refund window
func (r *Record) CheckRefundable(now time.Time, window time.Duration) error {
	if r.Status != shared.PurchaseStatusCompleted || r.PaidAt == nil {
		return ErrNotRefundable{ID: r.ID, Reason: RefundReasonNotCompleted}
	}
	if now.Sub(*r.PaidAt) > window {
		return ErrNotRefundable{ID: r.ID, Reason: RefundReasonWindowExpired}
	}
	return nil
}
