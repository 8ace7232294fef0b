package components

import (
	"fmt"
	"log/slog"

	"github.com/systems-marketplace-payments/internal/config"
	"github.com/systems-marketplace-payments/internal/domain/access"
	"github.com/systems-marketplace-payments/internal/domain/creator"
	"github.com/systems-marketplace-payments/internal/domain/outbox"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/fees"
	"github.com/systems-marketplace-payments/internal/platform/messaging/producers"
	"github.com/systems-marketplace-payments/internal/platform/payments"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

// CreateLedgerService creates a new LedgerService with all its dependencies.
// producer may be nil, in which case lifecycle events are not published.
func CreateLedgerService(
	purchaseRepo purchase.Repository,
	creatorRepo creator.Repository,
	grantRepo access.Repository,
	outboxRepo outbox.Repository,
	processor payments.Processor,
	producer producers.EventPublisher,
	logger *slog.Logger,
	cfg *config.Config,
) (service.LedgerService, error) {
	rates, err := fees.RatesFromConfig(&cfg.Fees)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rates: %w", err)
	}

	validator := NewPurchaseValidator(logger.With("component", "purchase_validator"))
	gate := NewPayoutGate(creatorRepo, processor, logger.With("component", "payout_gate"))
	granter := NewAccessGranter(grantRepo, logger.With("component", "access_granter"))
	events := NewEventPublisher(producer, logger.With("component", "event_publisher"))
	reconciler := NewReconciliationRecorder(outboxRepo, logger.With("component", "reconciliation_recorder"))

	ledger := service.NewLedgerService(
		purchaseRepo,
		processor,
		fees.NewCalculator(rates),
		validator,
		gate,
		granter,
		events,
		reconciler,
		service.LedgerConfig{
			Currency:     cfg.Fees.Currency,
			RefundWindow: cfg.Fees.RefundWindow,
		},
		logger,
	)

	logger.Info("Created purchase ledger service",
		"platform_fee_percent", rates.PlatformFeePercent.String(),
		"refund_window", cfg.Fees.RefundWindow.String(),
	)
	return ledger, nil
}
