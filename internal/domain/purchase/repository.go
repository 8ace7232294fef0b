package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// Repository persists purchase records. Every status change is a conditional
// write on the expected current status; a lost race yields ErrStatusConflict.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// MarkCompleted moves pending_payment to completed
	MarkCompleted(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	// ClaimRefund moves completed to refund_pending
	ClaimRefund(ctx context.Context, id uuid.UUID, at time.Time) error
	// ReleaseRefund moves refund_pending back to completed
	ReleaseRefund(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkRefunded moves refund_pending to refunded
	MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, refundedAt time.Time) error
	// ListStale returns records in status last updated before olderThan.
	// Records the sweeper has never visited come first, then the least
	// recently visited, so a full batch of stuck records cannot hide newer ones.
	ListStale(ctx context.Context, status shared.PurchaseStatus, olderThan time.Time, limit int) ([]*Record, error)
	// MarkSwept records a sweeper visit without touching status or updated_at
	MarkSwept(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ErrPurchaseNotFound indicates a missing purchase record
type ErrPurchaseNotFound struct {
	ID uuid.UUID
}

func (e ErrPurchaseNotFound) Error() string {
	return "purchase not found: " + e.ID.String()
}

// Is matches any ErrPurchaseNotFound when the target ID is nil
func (e ErrPurchaseNotFound) Is(target error) bool {
	t, ok := target.(ErrPurchaseNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicatePurchase indicates the purchase id is already stored
type ErrDuplicatePurchase struct {
	ID uuid.UUID
}

func (e ErrDuplicatePurchase) Error() string {
	return "duplicate purchase: " + e.ID.String()
}

func (e ErrDuplicatePurchase) Is(target error) bool {
	t, ok := target.(ErrDuplicatePurchase)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrStatusConflict means the record was not in the expected status when a
// transition was attempted
type ErrStatusConflict struct {
	ID       uuid.UUID
	Expected shared.PurchaseStatus
}

func (e ErrStatusConflict) Error() string {
	return "purchase " + e.ID.String() + " is not in status " + string(e.Expected)
}

func (e ErrStatusConflict) Is(target error) bool {
	t, ok := target.(ErrStatusConflict)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID && (t.Expected == "" || e.Expected == t.Expected)
}

// RefundReason explains why a purchase cannot be refunded
type RefundReason string

const (
	RefundReasonNotCompleted  RefundReason = "purchase not completed"
	RefundReasonWindowExpired RefundReason = "refund window expired"
)

// ErrNotRefundable is returned by Record.CheckRefundable
type ErrNotRefundable struct {
	ID     uuid.UUID
	Reason RefundReason
}

func (e ErrNotRefundable) Error() string {
	return "purchase " + e.ID.String() + " cannot be refunded: " + string(e.Reason)
}
