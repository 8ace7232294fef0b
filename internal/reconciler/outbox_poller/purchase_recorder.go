package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/systems-marketplace-payments/internal/domain/outbox"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// PurchaseRecorder stores the purchase record carried by an outbox message
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, message *outbox.Message) error
}

// PurchaseRecorderImpl implements PurchaseRecorder
type PurchaseRecorderImpl struct {
	outboxRepo   outbox.Repository
	purchaseRepo purchase.Repository
	logger       *slog.Logger
}

// NewPurchaseRecorder creates a new recorder
func NewPurchaseRecorder(
	outboxRepo outbox.Repository,
	purchaseRepo purchase.Repository,
	logger *slog.Logger,
) PurchaseRecorder {
	return &PurchaseRecorderImpl{
		outboxRepo:   outboxRepo,
		purchaseRepo: purchaseRepo,
		logger:       logger,
	}
}

// RecordPurchase inserts the record and marks the message processed.
// A record that is already stored counts as success.
func (r *PurchaseRecorderImpl) RecordPurchase(ctx context.Context, message *outbox.Message) error {
	record, err := message.PurchaseRecord()
	if err != nil {
		r.logger.Error("Failed to unmarshal purchase record from outbox payload",
			"outbox_id", message.ID, "purchase_id", message.PurchaseID.String(), "error", err,
		)
		if updateErr := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToProcess); updateErr != nil {
			r.logger.Error("Also failed to update outbox status to FAILED_TO_PROCESS after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := r.logger.With("outbox_id", message.ID, "purchase_id", record.ID.String())

	if err := r.purchaseRepo.Create(ctx, record); err != nil {
		if !errors.Is(err, purchase.ErrDuplicatePurchase{}) {
			logger.Error("Failed to insert reconciled purchase record", "error", err)
			return fmt.Errorf("failed to insert purchase %s: %w", record.ID, err)
		}
		logger.Info("Purchase record already stored")
	} else {
		logger.Info("Inserted reconciled purchase record", "payment_intent_id", record.PaymentIntentID)
	}

	if err := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("purchase %s stored, but failed to mark outbox %d as PROCESSED: %w", record.ID, message.ID, err)
	}

	return nil
}
