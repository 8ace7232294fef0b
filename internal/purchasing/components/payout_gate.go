package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/systems-marketplace-payments/internal/domain/creator"
	"github.com/systems-marketplace-payments/internal/platform/payments"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

// AccountRetriever reads a connected account's live state from the processor
type AccountRetriever interface {
	RetrieveConnectedAccount(ctx context.Context, accountID string) (*payments.ConnectedAccount, error)
}

type PayoutGateImpl struct {
	creatorRepo creator.Repository
	accounts    AccountRetriever
	logger      *slog.Logger
}

func NewPayoutGate(creatorRepo creator.Repository, accounts AccountRetriever, logger *slog.Logger) service.PayoutGate {
	return &PayoutGateImpl{
		creatorRepo: creatorRepo,
		accounts:    accounts,
		logger:      logger,
	}
}

// VerifyPayoutReady asks the processor, not the cached snapshot, whether the
// creator's account can take charges. The stored reference is never modified.
func (g *PayoutGateImpl) VerifyPayoutReady(ctx context.Context, creatorID string) (*service.PayoutReadiness, error) {
	ref, err := g.creatorRepo.GetByCreatorID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, creator.ErrConnectedAccountNotFound{}) {
			return &service.PayoutReadiness{Reason: service.ReadinessNotConnected}, nil
		}
		return nil, fmt.Errorf("failed to load connected account for creator %s: %w", creatorID, err)
	}
	if ref.AccountID == "" {
		return &service.PayoutReadiness{Reason: service.ReadinessNotConnected}, nil
	}

	account, err := g.accounts.RetrieveConnectedAccount(ctx, ref.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve connected account %s: %w", ref.AccountID, err)
	}

	if !account.ChargesEnabled {
		g.logger.Info("Connected account cannot take charges",
			"creator_id", creatorID,
			"account_id", ref.AccountID,
			"currently_due", account.CurrentlyDue,
		)
		return &service.PayoutReadiness{Reason: service.ReadinessNotVerified, AccountID: ref.AccountID}, nil
	}

	return &service.PayoutReadiness{Ready: true, AccountID: ref.AccountID}, nil
}
