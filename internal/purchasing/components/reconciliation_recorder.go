package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/systems-marketplace-payments/internal/domain/outbox"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

type ReconciliationRecorderImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewReconciliationRecorder(outboxRepo outbox.Repository, logger *slog.Logger) service.ReconciliationRecorder {
	return &ReconciliationRecorderImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// RecordUnpersisted queues the record for the reconciler to insert later.
// A message already queued for the same purchase counts as recorded.
func (r *ReconciliationRecorderImpl) RecordUnpersisted(ctx context.Context, record *purchase.Record) error {
	message, err := outbox.NewPersistPurchaseMessage(record)
	if err != nil {
		return fmt.Errorf("failed to encode purchase %s for reconciliation: %w", record.ID.String(), err)
	}

	if err := r.outboxRepo.Create(ctx, message); err != nil {
		var dup outbox.ErrDuplicateMessage
		if errors.As(err, &dup) {
			r.logger.Info("Purchase already queued for reconciliation", "purchase_id", record.ID.String())
			return nil
		}
		return err
	}

	r.logger.Warn("Purchase queued for reconciliation",
		"purchase_id", record.ID.String(),
		"payment_intent_id", record.PaymentIntentID,
		"outbox_id", message.ID,
	)
	return nil
}
