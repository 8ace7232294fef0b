package handler

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CreatePurchaseRequest is the body of POST /purchases. Price is in dollars.
type CreatePurchaseRequest struct {
	CreatorID  string          `json:"creator_id" binding:"required"`
	SystemID   string          `json:"system_id" binding:"required"`
	SystemName string          `json:"system_name" binding:"required"`
	Price      decimal.Decimal `json:"price"`
}

// CreatePurchaseResponse carries what the buyer's payment sheet needs
type CreatePurchaseResponse struct {
	ClientSecret string      `json:"client_secret"`
	PurchaseID   string      `json:"purchase_id"`
	TotalAmount  json.Number `json:"total_amount"`
	PlatformFee  json.Number `json:"platform_fee"`
}

// PurchaseStatusResponse is returned by the status poll
type PurchaseStatusResponse struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// PurchaseResponse represents a purchase record in API responses
type PurchaseResponse struct {
	ID                 string      `json:"id"`
	BuyerID            string      `json:"buyer_id"`
	CreatorID          string      `json:"creator_id"`
	SystemID           string      `json:"system_id"`
	SystemName         string      `json:"system_name"`
	Price              json.Number `json:"price"`
	PlatformFee        json.Number `json:"platform_fee"`
	TotalAmount        json.Number `json:"total_amount"`
	CreatorPayout      json.Number `json:"creator_payout"`
	PlatformFeePercent string      `json:"platform_fee_percent"`
	Currency           string      `json:"currency"`
	Status             string      `json:"status"`
	PaymentIntentID    string      `json:"payment_intent_id"`
	RefundID           string      `json:"refund_id,omitempty"`
	CreatedAt          string      `json:"created_at"`
	UpdatedAt          string      `json:"updated_at"`
	PaidAt             string      `json:"paid_at,omitempty"`
	RefundedAt         string      `json:"refunded_at,omitempty"`
}

// SuccessResponse acknowledges an operation with no other result
type SuccessResponse struct {
	Success bool `json:"success"`
}

// AccessResponse answers whether the caller may use a system
type AccessResponse struct {
	SystemID  string `json:"system_id"`
	HasAccess bool   `json:"has_access"`
}

// ConnectAccountRequest is the body of POST /creators/me/connect
type ConnectAccountRequest struct {
	Email        string `json:"email" binding:"omitempty,email"`
	BusinessType string `json:"business_type" binding:"omitempty,oneof=individual company"`
}

// ConnectAccountResponse carries the onboarding link for a creator's account
type ConnectAccountResponse struct {
	AccountID   string `json:"account_id"`
	AccountLink string `json:"account_link"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	IsExisting  bool   `json:"is_existing"`
}

// AccountLinkResponse carries a fresh onboarding link
type AccountLinkResponse struct {
	AccountLink string `json:"account_link"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
}

// AccountStatusResponse is the refreshed verification state of a creator's account
type AccountStatusResponse struct {
	Connected           bool     `json:"connected"`
	AccountID           string   `json:"account_id,omitempty"`
	Status              string   `json:"status,omitempty"`
	FullyVerified       bool     `json:"fully_verified"`
	ChargesEnabled      bool     `json:"charges_enabled"`
	PayoutsEnabled      bool     `json:"payouts_enabled"`
	DetailsSubmitted    bool     `json:"details_submitted"`
	BusinessName        string   `json:"business_name,omitempty"`
	CurrentRequirements []string `json:"current_requirements,omitempty"`
	PendingVerification []string `json:"pending_verification,omitempty"`
}
