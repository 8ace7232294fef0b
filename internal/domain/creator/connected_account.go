package creator

import (
	"time"

	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// ConnectedAccount is a creator's payout destination at the processor plus
// the verification snapshot last fetched from it. The snapshot is only ever
// refreshed from the processor, never derived locally.
type ConnectedAccount struct {
	CreatorID           string                        `json:"creator_id"`
	AccountID           string                        `json:"account_id"`
	Status              shared.ConnectedAccountStatus `json:"status"`
	ChargesEnabled      bool                          `json:"charges_enabled"`
	PayoutsEnabled      bool                          `json:"payouts_enabled"`
	DetailsSubmitted    bool                          `json:"details_submitted"`
	BusinessName        string                        `json:"business_name,omitempty"`
	CurrentRequirements []string                      `json:"current_requirements"`
	PendingVerification []string                      `json:"pending_verification"`
	CreatedAt           time.Time                     `json:"created_at"`
	UpdatedAt           time.Time                     `json:"updated_at"`
	LastCheckedAt       *time.Time                    `json:"last_checked_at,omitempty"`
}

// Snapshot is the verification state reported by the processor
type Snapshot struct {
	ChargesEnabled      bool
	PayoutsEnabled      bool
	DetailsSubmitted    bool
	BusinessName        string
	CurrentRequirements []string
	PendingVerification []string
}

// NewConnectedAccount registers a freshly created processor account
func NewConnectedAccount(creatorID, accountID string, now time.Time) *ConnectedAccount {
	return &ConnectedAccount{
		CreatorID:           creatorID,
		AccountID:           accountID,
		Status:              shared.ConnectedAccountStatusOnboardingStarted,
		CurrentRequirements: []string{},
		PendingVerification: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// ApplySnapshot overwrites the cached verification state. The account is
// active only when both charges and payouts are enabled.
func (a *ConnectedAccount) ApplySnapshot(s Snapshot, checkedAt time.Time) {
	a.ChargesEnabled = s.ChargesEnabled
	a.PayoutsEnabled = s.PayoutsEnabled
	a.DetailsSubmitted = s.DetailsSubmitted
	a.BusinessName = s.BusinessName
	a.CurrentRequirements = nonNil(s.CurrentRequirements)
	a.PendingVerification = nonNil(s.PendingVerification)
	if a.IsFullyVerified() {
		a.Status = shared.ConnectedAccountStatusActive
	} else {
		a.Status = shared.ConnectedAccountStatusPending
	}
	a.UpdatedAt = checkedAt
	a.LastCheckedAt = &checkedAt
}

func (a *ConnectedAccount) IsFullyVerified() bool {
	return a.ChargesEnabled && a.PayoutsEnabled
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
