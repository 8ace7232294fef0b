package service

import (
	"context"

	"github.com/systems-marketplace-payments/internal/domain/creator"
	"github.com/systems-marketplace-payments/internal/platform/payments"
)

// ConnectService manages a creator's payout account at the processor.
// Every error it returns is a *shared.Error.
type ConnectService interface {
	// CreateConnectAccount starts onboarding. A creator who already has an
	// account gets a fresh onboarding link for it instead.
	CreateConnectAccount(ctx context.Context, creatorID, email, businessType string) (*ConnectResult, error)

	// GetAccountLink issues a new onboarding link for an existing account
	GetAccountLink(ctx context.Context, creatorID string) (*payments.AccountLink, error)

	// CheckAccountStatus refreshes the stored verification snapshot from the processor
	CheckAccountStatus(ctx context.Context, creatorID string) (*AccountStatus, error)

	// Disconnect forgets the creator's account. The processor account itself is kept.
	Disconnect(ctx context.Context, creatorID string) error
}

// ConnectResult is the outcome of CreateConnectAccount
type ConnectResult struct {
	AccountID  string
	Link       *payments.AccountLink
	IsExisting bool
}

// AccountStatus is the refreshed view of a creator's payout account.
// Account is nil when Connected is false.
type AccountStatus struct {
	Connected bool
	Account   *creator.ConnectedAccount
}
