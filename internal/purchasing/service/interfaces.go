package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// LedgerService owns the purchase lifecycle: pending_payment -> completed -> refunded.
// Every error it returns is a *shared.Error.
type LedgerService interface {
	// CreatePurchase validates, gates on the creator's payout account, prices
	// the purchase and issues one split charge for it
	CreatePurchase(ctx context.Context, req *CreatePurchaseRequest) (*CreatePurchaseResult, error)

	// ConfirmPayment completes a pending purchase once the processor reports
	// the payment succeeded. Callable by the buyer or the creator.
	ConfirmPayment(ctx context.Context, purchaseID uuid.UUID, callerID string) (*PurchaseStatus, error)

	// CancelPurchase refunds a completed purchase inside the refund window. Buyer only.
	CancelPurchase(ctx context.Context, purchaseID uuid.UUID, callerID string) error

	// GetPurchase returns the record to either party
	GetPurchase(ctx context.Context, purchaseID uuid.UUID, callerID string) (*purchase.Record, error)

	// HasAccess reports whether buyerID currently holds a grant for systemID
	HasAccess(ctx context.Context, buyerID, systemID string) (bool, error)

	// ReconcilePayment is ConfirmPayment without the caller check, for background sweeps
	ReconcilePayment(ctx context.Context, purchaseID uuid.UUID) (*PurchaseStatus, error)

	// ResumeRefund finishes a refund left in refund_pending
	ResumeRefund(ctx context.Context, purchaseID uuid.UUID) error
}

// PurchaseValidator checks a purchase request before any external call
type PurchaseValidator interface {
	Validate(req *CreatePurchaseRequest) error
}

// PayoutGate checks that a creator can receive split payments
type PayoutGate interface {
	VerifyPayoutReady(ctx context.Context, creatorID string) (*PayoutReadiness, error)
}

// AccessGranter maintains the buyer entitlements that mirror completed purchases
type AccessGranter interface {
	Grant(ctx context.Context, record *purchase.Record, purchasedAt time.Time) error
	Revoke(ctx context.Context, record *purchase.Record) error
	HasAccess(ctx context.Context, buyerID, systemID string) (bool, error)
}

// EventPublisher announces lifecycle transitions. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, eventType shared.PurchaseEventType, record *purchase.Record)
}

// ReconciliationRecorder queues a purchase whose charge exists but whose record could not be stored
type ReconciliationRecorder interface {
	RecordUnpersisted(ctx context.Context, record *purchase.Record) error
}

// CreatePurchaseRequest is a buyer's request to purchase a system
type CreatePurchaseRequest struct {
	BuyerID    string
	CreatorID  string
	SystemID   string
	SystemName string
	PriceCents int64
}

// CreatePurchaseResult carries the stored record and the handle the buyer's
// payment form needs to confirm the charge
type CreatePurchaseResult struct {
	Purchase     *purchase.Record
	ClientSecret string
}

// PurchaseStatus is the outcome of a status check. PaymentStatus is set only
// when the processor was consulted.
type PurchaseStatus struct {
	Status        shared.PurchaseStatus
	PaymentStatus shared.PaymentStatus
}

// ReadinessReason explains why a creator cannot be paid
type ReadinessReason string

const (
	ReadinessNotConnected ReadinessReason = "not_connected"
	ReadinessNotVerified  ReadinessReason = "not_verified"
)

// PayoutReadiness is the result of the payout gate
type PayoutReadiness struct {
	Ready     bool
	Reason    ReadinessReason
	AccountID string
}
