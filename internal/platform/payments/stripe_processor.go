package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/systems-marketplace-payments/internal/config"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

const platformTag = "systems_app"

// StripeProcessor implements Processor on top of Stripe Connect destination charges
type StripeProcessor struct {
	api        *client.API
	logger     *slog.Logger
	timeout    time.Duration
	returnURL  string
	refreshURL string
}

// NewStripeProcessor builds a processor bound to the configured secret key.
// backends may be nil to talk to the live Stripe API.
func NewStripeProcessor(logger *slog.Logger, cfg *config.StripeConfig, backends *stripe.Backends) *StripeProcessor {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &StripeProcessor{
		api:        api,
		logger:     logger,
		timeout:    cfg.Timeout,
		returnURL:  cfg.ConnectReturnURL,
		refreshURL: cfg.ConnectRefreshURL,
	}
}

func (p *StripeProcessor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// CreateSplitCharge creates a payment intent with application_fee_amount and
// transfer_data so both legs of the split settle in one request.
func (p *StripeProcessor) CreateSplitCharge(ctx context.Context, req SplitChargeRequest) (*SplitCharge, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(req.AmountCents),
		Currency:             stripe.String(req.Currency),
		ApplicationFeeAmount: stripe.Int64(req.ApplicationFeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.Destination),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		p.logger.Error("Failed to create payment intent",
			"destination", req.Destination,
			"amount_cents", req.AmountCents,
			"idempotency_key", req.IdempotencyKey,
			"error", Diagnose(err),
		)
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &SplitCharge{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       shared.PaymentStatus(pi.Status),
	}, nil
}

// RetrievePaymentStatus returns the live status of a payment intent
func (p *StripeProcessor) RetrievePaymentStatus(ctx context.Context, paymentIntentID string) (shared.PaymentStatus, error) {
	pi, err := p.getPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return "", err
	}
	return shared.PaymentStatus(pi.Status), nil
}

func (p *StripeProcessor) getPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		p.logger.Error("Failed to retrieve payment intent",
			"payment_intent_id", paymentIntentID,
			"error", Diagnose(err),
		)
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", paymentIntentID, err)
	}
	return pi, nil
}

// RefundPayment refunds the latest charge of the payment intent in full
func (p *StripeProcessor) RefundPayment(ctx context.Context, paymentIntentID string, idempotencyKey string) (*Refund, error) {
	pi, err := p.getPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if pi.LatestCharge == nil || pi.LatestCharge.ID == "" {
		return nil, ErrNoCharge
	}
	chargeID := pi.LatestCharge.ID

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.RefundParams{
		Charge: stripe.String(chargeID),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	params.AddMetadata("payment_intent_id", paymentIntentID)
	params.AddMetadata("platform", platformTag)

	r, err := p.api.Refunds.New(params)
	if err != nil {
		p.logger.Error("Failed to refund charge",
			"payment_intent_id", paymentIntentID,
			"charge_id", chargeID,
			"error", Diagnose(err),
		)
		return nil, fmt.Errorf("failed to refund charge %s: %w", chargeID, err)
	}

	return &Refund{
		ID:       r.ID,
		ChargeID: chargeID,
		Status:   string(r.Status),
	}, nil
}

// RetrieveConnectedAccount fetches verification state for a connected account
func (p *StripeProcessor) RetrieveConnectedAccount(ctx context.Context, accountID string) (*ConnectedAccount, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := p.api.Accounts.GetByID(accountID, params)
	if err != nil {
		p.logger.Error("Failed to retrieve connected account",
			"account_id", accountID,
			"error", Diagnose(err),
		)
		return nil, fmt.Errorf("failed to retrieve connected account %s: %w", accountID, err)
	}

	result := &ConnectedAccount{
		ID:                  acct.ID,
		ChargesEnabled:      acct.ChargesEnabled,
		PayoutsEnabled:      acct.PayoutsEnabled,
		DetailsSubmitted:    acct.DetailsSubmitted,
		CurrentlyDue:        []string{},
		PendingVerification: []string{},
	}
	if acct.BusinessProfile != nil {
		result.BusinessName = acct.BusinessProfile.Name
	}
	if acct.Requirements != nil {
		if acct.Requirements.CurrentlyDue != nil {
			result.CurrentlyDue = acct.Requirements.CurrentlyDue
		}
		if acct.Requirements.PendingVerification != nil {
			result.PendingVerification = acct.Requirements.PendingVerification
		}
	}
	return result, nil
}

// CreateConnectedAccount creates an Express account able to receive transfers
func (p *StripeProcessor) CreateConnectedAccount(ctx context.Context, req NewConnectedAccountRequest) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	country := req.Country
	if country == "" {
		country = "US"
	}
	businessType := req.BusinessType
	if businessType == "" {
		businessType = string(stripe.AccountBusinessTypeIndividual)
	}

	params := &stripe.AccountParams{
		Type:         stripe.String(string(stripe.AccountTypeExpress)),
		Country:      stripe.String(country),
		BusinessType: stripe.String(businessType),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.Context = ctx
	params.SetIdempotencyKey("connect-account-" + req.CreatorID)
	params.AddMetadata("creatorId", req.CreatorID)
	params.AddMetadata("platform", platformTag)

	acct, err := p.api.Accounts.New(params)
	if err != nil {
		p.logger.Error("Failed to create connected account",
			"creator_id", req.CreatorID,
			"error", Diagnose(err),
		)
		return "", fmt.Errorf("failed to create connected account: %w", err)
	}
	return acct.ID, nil
}

// CreateAccountLink issues a one-time onboarding URL
func (p *StripeProcessor) CreateAccountLink(ctx context.Context, accountID string) (*AccountLink, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(p.refreshURL),
		ReturnURL:  stripe.String(p.returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		p.logger.Error("Failed to create account link",
			"account_id", accountID,
			"error", Diagnose(err),
		)
		return nil, fmt.Errorf("failed to create account link for %s: %w", accountID, err)
	}
	return &AccountLink{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}

// Diagnose flattens a processor error into a single log-friendly string
func Diagnose(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Sprintf("type=%s code=%s status=%d request_id=%s msg=%s",
			stripeErr.Type, stripeErr.Code, stripeErr.HTTPStatusCode, stripeErr.RequestID, stripeErr.Msg)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsInvalidRequest reports whether the processor rejected the request itself
// rather than failing to process it
func IsInvalidRequest(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest
}

// IsRejected reports whether the processor definitely refused the request, so
// nothing was charged or refunded. Timeouts, 5xx responses and idempotency
// conflicts are not rejections: the outcome is unknown and the call must be
// retried with the same idempotency key.
func IsRejected(err error) bool {
	if errors.Is(err, ErrNoCharge) {
		return true
	}
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	status := stripeErr.HTTPStatusCode
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusConflict
}

// ErrorCode returns the processor's machine-readable error code, or ""
func ErrorCode(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return string(stripeErr.Code)
	}
	return ""
}
