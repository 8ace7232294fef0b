package shared

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseEventType names a lifecycle transition
type PurchaseEventType string

const (
	PurchaseEventCreated   PurchaseEventType = "purchase.created"
	PurchaseEventCompleted PurchaseEventType = "purchase.completed"
	PurchaseEventRefunded  PurchaseEventType = "purchase.refunded"
)

// PurchaseEvent is the Kafka message emitted on each lifecycle transition
type PurchaseEvent struct {
	EventID            uuid.UUID         `json:"event_id"`
	Type               PurchaseEventType `json:"type"`
	PurchaseID         uuid.UUID         `json:"purchase_id"`
	BuyerID            string            `json:"buyer_id"`
	CreatorID          string            `json:"creator_id"`
	SystemID           string            `json:"system_id"`
	PaymentIntentID    string            `json:"payment_intent_id,omitempty"`
	TotalAmountCents   int64             `json:"total_amount_cents"`
	PlatformFeeCents   int64             `json:"platform_fee_cents"`
	CreatorPayoutCents int64             `json:"creator_payout_cents"`
	Currency           string            `json:"currency"`
	CorrelationID      string            `json:"correlation_id,omitempty"`
	OccurredAt         time.Time         `json:"occurred_at"`
}
