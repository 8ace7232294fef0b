package payments

import (
	"context"
	"errors"

	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// ErrNoCharge is returned when a refund is requested for a payment that never produced a charge
var ErrNoCharge = errors.New("payment has no charge to refund")

// Processor is the external payment processor as seen by the purchase ledger
// and the creator onboarding flow. Every write accepts an idempotency key.
type Processor interface {
	// CreateSplitCharge creates one payment that charges the buyer the full
	// amount, keeps the application fee and routes the rest to destination.
	CreateSplitCharge(ctx context.Context, req SplitChargeRequest) (*SplitCharge, error)
	RetrievePaymentStatus(ctx context.Context, paymentIntentID string) (shared.PaymentStatus, error)
	// RefundPayment fully refunds the charge behind a payment intent
	RefundPayment(ctx context.Context, paymentIntentID string, idempotencyKey string) (*Refund, error)
	RetrieveConnectedAccount(ctx context.Context, accountID string) (*ConnectedAccount, error)
	CreateConnectedAccount(ctx context.Context, req NewConnectedAccountRequest) (string, error)
	CreateAccountLink(ctx context.Context, accountID string) (*AccountLink, error)
}

// SplitChargeRequest describes a destination charge
type SplitChargeRequest struct {
	AmountCents         int64
	ApplicationFeeCents int64
	Currency            string
	Destination         string
	IdempotencyKey      string
	Description         string
	Metadata            map[string]string
}

// SplitCharge is the processor's handle on a created payment
type SplitCharge struct {
	ID           string
	ClientSecret string
	Status       shared.PaymentStatus
}

type Refund struct {
	ID       string
	ChargeID string
	Status   string
}

// ConnectedAccount is the processor's view of a creator payout account
type ConnectedAccount struct {
	ID                  string
	ChargesEnabled      bool
	PayoutsEnabled      bool
	DetailsSubmitted    bool
	BusinessName        string
	CurrentlyDue        []string
	PendingVerification []string
}

type NewConnectedAccountRequest struct {
	CreatorID    string
	Email        string
	BusinessType string
	Country      string
}

type AccountLink struct {
	URL       string
	ExpiresAt int64
}
