package components

import (
	"log/slog"

	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

type PurchaseValidatorImpl struct {
	logger *slog.Logger
}

func NewPurchaseValidator(logger *slog.Logger) service.PurchaseValidator {
	return &PurchaseValidatorImpl{logger: logger}
}

// Validate rejects a request before any external call is made
func (v *PurchaseValidatorImpl) Validate(req *service.CreatePurchaseRequest) error {
	if req == nil || req.BuyerID == "" || req.CreatorID == "" || req.SystemID == "" || req.SystemName == "" {
		v.logger.Debug("Purchase request missing fields")
		return shared.NewInvalidArgument("Missing required fields")
	}

	if req.PriceCents <= 0 {
		v.logger.Debug("Invalid purchase price", "system_id", req.SystemID, "price_cents", req.PriceCents)
		return shared.NewInvalidArgument("Price must be greater than 0")
	}

	if req.BuyerID == req.CreatorID {
		v.logger.Info("Rejected self purchase", "buyer_id", req.BuyerID, "system_id", req.SystemID)
		return shared.NewInvalidArgument("Cannot purchase your own system")
	}

	return nil
}
