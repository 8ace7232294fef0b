package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/systems-marketplace-payments/internal/domain/creator"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/platform/payments"
)

const (
	msgNoAccount        = "No Stripe account found"
	msgConnectFailed    = "Unable to connect Stripe account. Please try again."
	msgPlatformDisabled = "Stripe Connect is not enabled on this account. Please contact support."
	msgAccountInvalid   = "Unable to create Stripe account. Please check your Stripe Dashboard settings."
)

// ConnectServiceImpl implements the ConnectService interface
type ConnectServiceImpl struct {
	creatorRepo creator.Repository
	processor   payments.Processor
	logger      *slog.Logger
	now         func() time.Time
}

// NewConnectService creates a new creator onboarding service
func NewConnectService(creatorRepo creator.Repository, processor payments.Processor, logger *slog.Logger) ConnectService {
	return &ConnectServiceImpl{
		creatorRepo: creatorRepo,
		processor:   processor,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ConnectServiceImpl) CreateConnectAccount(ctx context.Context, creatorID, email, businessType string) (*ConnectResult, error) {
	logger := s.logger.With("creator_id", creatorID, "correlation_id", shared.CorrelationID(ctx))

	existing, err := s.lookup(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("Connected account already exists, issuing new onboarding link", "account_id", existing.AccountID)
		return s.existingResult(ctx, existing.AccountID)
	}

	accountID, err := s.processor.CreateConnectedAccount(ctx, payments.NewConnectedAccountRequest{
		CreatorID:    creatorID,
		Email:        email,
		BusinessType: businessType,
	})
	if err != nil {
		return nil, shared.NewInternal(connectFailureMessage(err), err)
	}

	account := creator.NewConnectedAccount(creatorID, accountID, s.now().UTC())
	if err := s.creatorRepo.Create(ctx, account); err != nil {
		var already creator.ErrAlreadyConnected
		if errors.As(err, &already) {
			// a concurrent request stored its account first
			current, lookupErr := s.lookup(ctx, creatorID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if current != nil {
				return s.existingResult(ctx, current.AccountID)
			}
		}
		logger.Error("Failed to store connected account", "account_id", accountID, "error", err)
		return nil, shared.NewInternal(msgConnectFailed, err)
	}

	link, err := s.processor.CreateAccountLink(ctx, accountID)
	if err != nil {
		return nil, shared.NewInternal(msgConnectFailed, err)
	}

	logger.Info("Connected account onboarding started", "account_id", accountID)
	return &ConnectResult{AccountID: accountID, Link: link}, nil
}

func (s *ConnectServiceImpl) existingResult(ctx context.Context, accountID string) (*ConnectResult, error) {
	link, err := s.processor.CreateAccountLink(ctx, accountID)
	if err != nil {
		return nil, shared.NewInternal(msgConnectFailed, err)
	}
	return &ConnectResult{AccountID: accountID, Link: link, IsExisting: true}, nil
}

func (s *ConnectServiceImpl) GetAccountLink(ctx context.Context, creatorID string) (*payments.AccountLink, error) {
	account, err := s.lookup(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, shared.NewNotFound(msgNoAccount)
	}

	link, err := s.processor.CreateAccountLink(ctx, account.AccountID)
	if err != nil {
		return nil, shared.NewInternal("Failed to create account link", err)
	}
	return link, nil
}

func (s *ConnectServiceImpl) CheckAccountStatus(ctx context.Context, creatorID string) (*AccountStatus, error) {
	account, err := s.lookup(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &AccountStatus{Connected: false}, nil
	}

	live, err := s.processor.RetrieveConnectedAccount(ctx, account.AccountID)
	if err != nil {
		return nil, shared.NewInternal("Failed to check account status", err)
	}

	account.ApplySnapshot(creator.Snapshot{
		ChargesEnabled:      live.ChargesEnabled,
		PayoutsEnabled:      live.PayoutsEnabled,
		DetailsSubmitted:    live.DetailsSubmitted,
		BusinessName:        live.BusinessName,
		CurrentRequirements: live.CurrentlyDue,
		PendingVerification: live.PendingVerification,
	}, s.now().UTC())

	if err := s.creatorRepo.UpdateSnapshot(ctx, account); err != nil {
		s.logger.Error("Failed to store account snapshot", "creator_id", creatorID, "error", err)
		return nil, shared.NewInternal("Failed to check account status", err)
	}

	s.logger.Info("Connected account status refreshed",
		"creator_id", creatorID,
		"account_id", account.AccountID,
		"status", string(account.Status),
	)
	return &AccountStatus{Connected: true, Account: account}, nil
}

func (s *ConnectServiceImpl) Disconnect(ctx context.Context, creatorID string) error {
	err := s.creatorRepo.Delete(ctx, creatorID)
	if err != nil && !errors.Is(err, creator.ErrConnectedAccountNotFound{}) {
		s.logger.Error("Failed to disconnect account", "creator_id", creatorID, "error", err)
		return shared.NewInternal("Failed to disconnect account", err)
	}

	s.logger.Info("Connected account disconnected", "creator_id", creatorID)
	return nil
}

// lookup returns nil without error when the creator has no account on file
func (s *ConnectServiceImpl) lookup(ctx context.Context, creatorID string) (*creator.ConnectedAccount, error) {
	account, err := s.creatorRepo.GetByCreatorID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, creator.ErrConnectedAccountNotFound{}) {
			return nil, nil
		}
		s.logger.Error("Failed to load connected account", "creator_id", creatorID, "error", err)
		return nil, shared.NewInternal("Failed to load connected account", err)
	}
	if account.AccountID == "" {
		return nil, nil
	}
	return account, nil
}

func connectFailureMessage(err error) string {
	switch payments.ErrorCode(err) {
	case "platform_not_enabled":
		return msgPlatformDisabled
	case "account_invalid":
		return msgAccountInvalid
	default:
		return msgConnectFailed
	}
}
