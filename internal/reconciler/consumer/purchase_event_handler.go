package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/systems-marketplace-payments/internal/domain/audit"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/platform/messaging/producers"
)

var errMissingEventID = errors.New("event has no event_id")

// PurchaseEventHandler appends purchase lifecycle events from Kafka to the audit trail
type PurchaseEventHandler struct {
	auditRepo audit.Repository
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewPurchaseEventHandler creates a new handler. producer may be nil, in which
// case undecodable messages are retried rather than dead-lettered.
func NewPurchaseEventHandler(
	logger *slog.Logger,
	auditRepo audit.Repository,
	producer producers.DeadLetterPublisher,
) *PurchaseEventHandler {
	return &PurchaseEventHandler{
		auditRepo: auditRepo,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage processes Kafka messages
func (h *PurchaseEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.PurchaseEvent
	err := json.Unmarshal(value, &event)
	if err == nil && event.EventID == uuid.Nil {
		err = errMissingEventID
	}
	if err != nil {
		unmarshalErrorMsg := "Failed to decode purchase event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after decode error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				return nil
			}
		}
		return fmt.Errorf("failed to decode message value: %w", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	inserted, err := h.auditRepo.Append(ctx, &event)
	if err != nil {
		logger.Error("Failed to append purchase event",
			"event_id", event.EventID.String(),
			"purchase_id", event.PurchaseID.String(),
			"error", err,
		)
		return fmt.Errorf("appending event %s failed: %w", event.EventID, err)
	}

	if !inserted {
		logger.Info("Ignored replayed purchase event", "event_id", event.EventID.String())
		return nil
	}

	logger.Info("Recorded purchase event",
		"event_id", event.EventID.String(),
		"type", event.Type,
		"purchase_id", event.PurchaseID.String(),
	)
	return nil
}
