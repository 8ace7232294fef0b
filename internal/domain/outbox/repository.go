package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// Repository manages reconciliation message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrDuplicateMessage indicates a message of the same kind already exists for the purchase
type ErrDuplicateMessage struct {
	PurchaseID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.PurchaseID.String()
}
