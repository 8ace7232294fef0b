package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/platform/messaging/producers"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

type EventPublisherImpl struct {
	producer producers.EventPublisher
	logger   *slog.Logger
}

// NewEventPublisher wraps producer. A nil producer turns publishing into a no-op.
func NewEventPublisher(producer producers.EventPublisher, logger *slog.Logger) service.EventPublisher {
	return &EventPublisherImpl{
		producer: producer,
		logger:   logger,
	}
}

// Publish emits the event and only logs failures; the purchase state is
// already stored by the time an event is published.
func (p *EventPublisherImpl) Publish(ctx context.Context, eventType shared.PurchaseEventType, record *purchase.Record) {
	if p.producer == nil {
		return
	}

	event := NewPurchaseEvent(ctx, eventType, record)
	if err := p.producer.PublishEvent(ctx, event); err != nil {
		p.logger.Warn("Failed to publish purchase event",
			"event_type", string(eventType),
			"purchase_id", record.ID.String(),
			"error", err,
		)
	}
}

// NewPurchaseEvent snapshots record into a lifecycle event
func NewPurchaseEvent(ctx context.Context, eventType shared.PurchaseEventType, record *purchase.Record) *shared.PurchaseEvent {
	return &shared.PurchaseEvent{
		EventID:            uuid.New(),
		Type:               eventType,
		PurchaseID:         record.ID,
		BuyerID:            record.BuyerID,
		CreatorID:          record.CreatorID,
		SystemID:           record.SystemID,
		PaymentIntentID:    record.PaymentIntentID,
		TotalAmountCents:   record.TotalAmountCents,
		PlatformFeeCents:   record.PlatformFeeCents,
		CreatorPayoutCents: record.CreatorPayoutCents,
		Currency:           record.Currency,
		CorrelationID:      shared.CorrelationID(ctx),
		OccurredAt:         time.Now().UTC(),
	}
}
