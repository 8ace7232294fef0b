package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/systems-marketplace-payments/internal/config"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

const (
	headerEventType     = "event-type"
	headerCorrelationID = "correlation-id"
)

// PurchaseEventProducer writes lifecycle events to the purchase events topic,
// keyed by purchase id so the events of one purchase stay ordered
type PurchaseEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewPurchaseEventProducer ensures the topic exists and returns a producer for it
func NewPurchaseEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*PurchaseEventProducer, error) {
	if cfg.PurchaseEventsTopic == "" {
		return nil, fmt.Errorf("kafka purchase events topic is not configured")
	}

	if err := ensureTopic(cfg, cfg.PurchaseEventsTopic, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure purchase events topic %s exists: %w", cfg.PurchaseEventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.PurchaseEventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write purchase events asynchronously", "topic", cfg.PurchaseEventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Wrote purchase events asynchronously", "topic", cfg.PurchaseEventsTopic, "count", len(messages))
			}
		},
	}

	return &PurchaseEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.PurchaseEventsTopic,
	}, nil
}

func (p *PurchaseEventProducer) PublishEvent(ctx context.Context, event *shared.PurchaseEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PurchaseID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerCorrelationID, Value: []byte(event.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish purchase event",
			"topic", p.topic,
			"event_type", string(event.Type),
			"purchase_id", event.PurchaseID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to publish purchase event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published purchase event",
		"topic", p.topic,
		"event_type", string(event.Type),
		"purchase_id", event.PurchaseID.String(),
	)
	return nil
}

func (p *PurchaseEventProducer) Close() error {
	p.logger.Info("Closing purchase event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
