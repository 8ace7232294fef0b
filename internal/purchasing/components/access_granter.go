package components

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/systems-marketplace-payments/internal/domain/access"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

type AccessGranterImpl struct {
	grantRepo access.Repository
	logger    *slog.Logger
}

func NewAccessGranter(grantRepo access.Repository, logger *slog.Logger) service.AccessGranter {
	return &AccessGranterImpl{
		grantRepo: grantRepo,
		logger:    logger,
	}
}

// Grant upserts the buyer's entitlement for the purchased system
func (g *AccessGranterImpl) Grant(ctx context.Context, record *purchase.Record, purchasedAt time.Time) error {
	grant := &access.Grant{
		BuyerID:        record.BuyerID,
		SystemID:       record.SystemID,
		PurchaseID:     record.ID,
		CreatorID:      record.CreatorID,
		SystemName:     record.SystemName,
		PurchasedAt:    purchasedAt,
		CanApplyToBets: true,
	}
	if err := g.grantRepo.Upsert(ctx, grant); err != nil {
		return err
	}

	g.logger.Debug("Access granted",
		"buyer_id", record.BuyerID,
		"system_id", record.SystemID,
		"purchase_id", record.ID.String(),
	)
	return nil
}

// Revoke removes the grant issued for this purchase. A grant held by a newer
// purchase of the same system stays in place.
func (g *AccessGranterImpl) Revoke(ctx context.Context, record *purchase.Record) error {
	return g.grantRepo.Delete(ctx, record.BuyerID, record.SystemID, record.ID)
}

func (g *AccessGranterImpl) HasAccess(ctx context.Context, buyerID, systemID string) (bool, error) {
	_, err := g.grantRepo.Get(ctx, buyerID, systemID)
	if err != nil {
		if errors.Is(err, access.ErrGrantNotFound{}) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
