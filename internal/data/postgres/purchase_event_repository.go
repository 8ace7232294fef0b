package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systems-marketplace-payments/internal/domain/audit"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/platform/persistence"
)

// PurchaseEventRepository implements the audit.Repository interface for PostgreSQL
type PurchaseEventRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPurchaseEventRepository creates a new PostgreSQL purchase event repository
func NewPurchaseEventRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.Repository {
	return &PurchaseEventRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *PurchaseEventRepository) Append(ctx context.Context, event *shared.PurchaseEvent) (bool, error) {
	query := `
		INSERT INTO purchase_events (event_id, type, purchase_id, buyer_id, creator_id, system_id,
			payment_intent_id, total_amount_cents, platform_fee_cents, creator_payout_cents,
			currency, correlation_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		event.EventID,
		event.Type,
		event.PurchaseID,
		event.BuyerID,
		event.CreatorID,
		event.SystemID,
		event.PaymentIntentID,
		event.TotalAmountCents,
		event.PlatformFeeCents,
		event.CreatorPayoutCents,
		event.Currency,
		event.CorrelationID,
		event.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to append purchase event",
			"event_id", event.EventID.String(),
			"purchase_id", event.PurchaseID.String(),
			"error", err)
		return false, fmt.Errorf("failed to append purchase event: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
