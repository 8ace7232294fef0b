package creator

import (
	"context"
)

// Repository manages connected account persistence, one row per creator
type Repository interface {
	GetByCreatorID(ctx context.Context, creatorID string) (*ConnectedAccount, error)
	Create(ctx context.Context, account *ConnectedAccount) error
	UpdateSnapshot(ctx context.Context, account *ConnectedAccount) error
	Delete(ctx context.Context, creatorID string) error
}

// ErrConnectedAccountNotFound indicates the creator has no payout account on file
type ErrConnectedAccountNotFound struct {
	CreatorID string
}

func (e ErrConnectedAccountNotFound) Error() string {
	return "connected account not found for creator: " + e.CreatorID
}

// Is matches any ErrConnectedAccountNotFound when the target creator is empty
func (e ErrConnectedAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrConnectedAccountNotFound)
	if !ok {
		return false
	}
	return t.CreatorID == "" || t.CreatorID == e.CreatorID
}

// ErrAlreadyConnected indicates a concurrent onboarding already stored an account
type ErrAlreadyConnected struct {
	CreatorID string
}

func (e ErrAlreadyConnected) Error() string {
	return "creator already has a connected account: " + e.CreatorID
}
