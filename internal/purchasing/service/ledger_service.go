package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/fees"
	"github.com/systems-marketplace-payments/internal/platform/payments"
)

const (
	platformTag  = "systems_app"
	purchaseType = "system"

	msgCreateFailed   = "Failed to create payment. Please try again."
	msgInvalidRequest = "Invalid payment request. Please contact support."

	revokeAttempts = 3
)

// PaymentProcessor is the part of the payment processor the ledger drives
type PaymentProcessor interface {
	CreateSplitCharge(ctx context.Context, req payments.SplitChargeRequest) (*payments.SplitCharge, error)
	RetrievePaymentStatus(ctx context.Context, paymentIntentID string) (shared.PaymentStatus, error)
	RefundPayment(ctx context.Context, paymentIntentID string, idempotencyKey string) (*payments.Refund, error)
}

// LedgerConfig holds the policy values of the ledger
type LedgerConfig struct {
	Currency     string
	RefundWindow time.Duration
}

type LedgerServiceImpl struct {
	purchaseRepo purchase.Repository
	processor    PaymentProcessor
	calculator   *fees.Calculator
	validator    PurchaseValidator
	gate         PayoutGate
	granter      AccessGranter
	events       EventPublisher
	reconciler   ReconciliationRecorder
	cfg          LedgerConfig
	logger       *slog.Logger
	now          func() time.Time

	// revokeBackoff is the pause between revocation attempts
	revokeBackoff time.Duration
}

func NewLedgerService(
	purchaseRepo purchase.Repository,
	processor PaymentProcessor,
	calculator *fees.Calculator,
	validator PurchaseValidator,
	gate PayoutGate,
	granter AccessGranter,
	events EventPublisher,
	reconciler ReconciliationRecorder,
	cfg LedgerConfig,
	logger *slog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		purchaseRepo: purchaseRepo,
		processor:    processor,
		calculator:   calculator,
		validator:    validator,
		gate:         gate,
		granter:      granter,
		events:       events,
		reconciler:   reconciler,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,

		revokeBackoff: 100 * time.Millisecond,
	}
}

func (s *LedgerServiceImpl) loggerFor(ctx context.Context) *slog.Logger {
	if id := shared.CorrelationID(ctx); id != "" {
		return s.logger.With("correlation_id", id)
	}
	return s.logger
}

func (s *LedgerServiceImpl) CreatePurchase(ctx context.Context, req *CreatePurchaseRequest) (*CreatePurchaseResult, error) {
	logger := s.loggerFor(ctx)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	readiness, err := s.gate.VerifyPayoutReady(ctx, req.CreatorID)
	if err != nil {
		logger.Error("Failed to verify creator payout account", "creator_id", req.CreatorID, "error", err)
		return nil, shared.NewInternal(msgCreateFailed, err)
	}
	if !readiness.Ready {
		logger.Info("Creator not ready for payouts", "creator_id", req.CreatorID, "reason", string(readiness.Reason))
		if readiness.Reason == ReadinessNotVerified {
			return nil, shared.NewFailedPrecondition("Creator account not verified for payments")
		}
		return nil, shared.NewFailedPrecondition("Creator has not connected Stripe account")
	}

	quote := s.calculator.Quote(req.PriceCents)
	now := s.now().UTC()
	record := &purchase.Record{
		ID:                 uuid.New(),
		BuyerID:            req.BuyerID,
		CreatorID:          req.CreatorID,
		SystemID:           req.SystemID,
		SystemName:         req.SystemName,
		PriceCents:         quote.PriceCents,
		PlatformFeeCents:   quote.PlatformFeeCents,
		TotalAmountCents:   quote.TotalCents,
		CreatorPayoutCents: quote.CreatorPayoutCents,
		PlatformFeePercent: quote.FeePercent.String(),
		Currency:           s.cfg.Currency,
		ConnectedAccountID: readiness.AccountID,
		Status:             shared.PurchaseStatusPendingPayment,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	logger = logger.With("purchase_id", record.ID.String())

	charge, err := s.processor.CreateSplitCharge(ctx, payments.SplitChargeRequest{
		AmountCents:         record.TotalAmountCents,
		ApplicationFeeCents: record.PlatformFeeCents,
		Currency:            record.Currency,
		Destination:         record.ConnectedAccountID,
		IdempotencyKey:      chargeIdempotencyKey(record.ID),
		Description:         "System purchase: " + record.SystemName,
		Metadata:            chargeMetadata(record),
	})
	if err != nil {
		logger.Error("Failed to create split charge",
			"creator_id", record.CreatorID,
			"system_id", record.SystemID,
			"diagnostic", payments.Diagnose(err),
		)
		if payments.IsInvalidRequest(err) {
			return nil, shared.NewInternal(msgInvalidRequest, err)
		}
		return nil, shared.NewInternal(msgCreateFailed, err)
	}
	record.PaymentIntentID = charge.ID
	logger = logger.With("payment_intent_id", charge.ID)

	if err := s.purchaseRepo.Create(ctx, record); err != nil {
		logger.Error("Failed to store purchase after charge was created, queuing reconciliation", "error", err)
		if recErr := s.reconciler.RecordUnpersisted(ctx, record); recErr != nil {
			logger.Error("Failed to queue purchase reconciliation", "error", recErr)
			return nil, shared.NewInternal(msgCreateFailed, errors.Join(err, recErr))
		}
	}

	logger.Info("Purchase created",
		"price_cents", record.PriceCents,
		"platform_fee_cents", record.PlatformFeeCents,
		"total_amount_cents", record.TotalAmountCents,
	)
	s.events.Publish(ctx, shared.PurchaseEventCreated, record)

	return &CreatePurchaseResult{Purchase: record, ClientSecret: charge.ClientSecret}, nil
}

func (s *LedgerServiceImpl) ConfirmPayment(ctx context.Context, purchaseID uuid.UUID, callerID string) (*PurchaseStatus, error) {
	record, err := s.load(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if !record.IsParty(callerID) {
		return nil, shared.NewPermissionDenied("Not authorized to view this purchase")
	}
	return s.confirm(ctx, record)
}

func (s *LedgerServiceImpl) ReconcilePayment(ctx context.Context, purchaseID uuid.UUID) (*PurchaseStatus, error) {
	record, err := s.load(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, record)
}

// confirm grants access first and then moves the record to completed with a
// conditional write, so a completed record always has its grant. Only the
// caller that wins the write publishes the completion.
func (s *LedgerServiceImpl) confirm(ctx context.Context, record *purchase.Record) (*PurchaseStatus, error) {
	if record.Status != shared.PurchaseStatusPendingPayment {
		return &PurchaseStatus{Status: record.Status}, nil
	}

	logger := s.loggerFor(ctx).With(
		"purchase_id", record.ID.String(),
		"payment_intent_id", record.PaymentIntentID,
	)

	paymentStatus, err := s.processor.RetrievePaymentStatus(ctx, record.PaymentIntentID)
	if err != nil {
		logger.Error("Failed to retrieve payment status", "diagnostic", payments.Diagnose(err))
		return nil, shared.NewInternal("Failed to check payment status", err)
	}
	if paymentStatus != shared.PaymentStatusSucceeded {
		return &PurchaseStatus{Status: record.Status, PaymentStatus: paymentStatus}, nil
	}

	paidAt := s.now().UTC()
	if err := s.granter.Grant(ctx, record, paidAt); err != nil {
		logger.Error("Failed to grant access, purchase stays pending", "error", err)
		return nil, shared.NewInternal("Failed to complete purchase", err)
	}

	err = s.purchaseRepo.MarkCompleted(ctx, record.ID, paidAt)
	if errors.Is(err, purchase.ErrStatusConflict{}) {
		current, loadErr := s.load(ctx, record.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		logger.Info("Purchase already moved on by another caller", "status", string(current.Status))
		if current.Status == shared.PurchaseStatusRefundPending || current.Status == shared.PurchaseStatusRefunded {
			// our grant may have landed after the refund revoked it
			if revokeErr := s.revoke(ctx, record); revokeErr != nil {
				logger.Error("Failed to revoke access re-granted after refund", "error", revokeErr)
			}
		}
		return &PurchaseStatus{Status: current.Status, PaymentStatus: paymentStatus}, nil
	}
	if err != nil {
		logger.Error("Failed to mark purchase completed", "error", err)
		return nil, shared.NewInternal("Failed to complete purchase", err)
	}

	record.Status = shared.PurchaseStatusCompleted
	record.PaidAt = &paidAt
	record.UpdatedAt = paidAt
	logger.Info("Purchase completed",
		"platform_fee_cents", record.PlatformFeeCents,
		"net_revenue_cents", s.calculator.NetRevenue(record.PlatformFeeCents, record.TotalAmountCents).StringFixed(2),
	)
	s.events.Publish(ctx, shared.PurchaseEventCompleted, record)

	return &PurchaseStatus{Status: shared.PurchaseStatusCompleted, PaymentStatus: paymentStatus}, nil
}

func (s *LedgerServiceImpl) CancelPurchase(ctx context.Context, purchaseID uuid.UUID, callerID string) error {
	record, err := s.load(ctx, purchaseID)
	if err != nil {
		return err
	}
	if callerID == "" || record.BuyerID != callerID {
		return shared.NewPermissionDenied("Only the buyer can cancel")
	}

	now := s.now().UTC()
	if err := record.CheckRefundable(now, s.cfg.RefundWindow); err != nil {
		return notRefundable(record, err)
	}

	if err := s.purchaseRepo.ClaimRefund(ctx, record.ID, now); err != nil {
		if errors.Is(err, purchase.ErrStatusConflict{}) {
			return shared.NewFailedPrecondition("Purchase already refunded")
		}
		s.loggerFor(ctx).Error("Failed to claim purchase for refund", "purchase_id", record.ID.String(), "error", err)
		return shared.NewInternal("Failed to cancel purchase", err)
	}
	record.Status = shared.PurchaseStatusRefundPending

	return s.finishRefund(ctx, record, true)
}

func (s *LedgerServiceImpl) ResumeRefund(ctx context.Context, purchaseID uuid.UUID) error {
	record, err := s.load(ctx, purchaseID)
	if err != nil {
		return err
	}
	if record.Status != shared.PurchaseStatusRefundPending {
		return nil
	}
	return s.finishRefund(ctx, record, false)
}

// finishRefund refunds a claimed purchase, revokes access and marks it refunded.
// The claim is given back only when release is set and the processor
// definitely rejected the refund. Any other failure leaves the record in
// refund_pending so the sweeper retries under the same idempotency key.
func (s *LedgerServiceImpl) finishRefund(ctx context.Context, record *purchase.Record, release bool) error {
	logger := s.loggerFor(ctx).With(
		"purchase_id", record.ID.String(),
		"payment_intent_id", record.PaymentIntentID,
	)

	refund, err := s.processor.RefundPayment(ctx, record.PaymentIntentID, refundIdempotencyKey(record.ID))
	if err != nil {
		logger.Error("Failed to refund payment", "diagnostic", payments.Diagnose(err))
		if !payments.IsRejected(err) {
			logger.Warn("Refund outcome unknown, leaving purchase refund_pending for the sweeper")
			return shared.NewInternal("Refund is being processed. Please check back shortly.", err)
		}
		if release {
			if relErr := s.purchaseRepo.ReleaseRefund(ctx, record.ID, s.now().UTC()); relErr != nil {
				logger.Error("Failed to release refund claim", "error", relErr)
			}
		}
		return shared.NewInternal("Failed to refund payment. Please try again.", err)
	}
	logger = logger.With("refund_id", refund.ID)

	if err := s.revoke(ctx, record); err != nil {
		logger.Error("Refund issued but access revocation failed, leaving purchase for the sweeper", "error", err)
		return nil
	}

	refundedAt := s.now().UTC()
	err = s.purchaseRepo.MarkRefunded(ctx, record.ID, refund.ID, refundedAt)
	if err != nil && !errors.Is(err, purchase.ErrStatusConflict{}) {
		logger.Error("Refund issued but purchase update failed, leaving purchase for the sweeper", "error", err)
		return nil
	}

	record.Status = shared.PurchaseStatusRefunded
	record.RefundID = refund.ID
	record.RefundedAt = &refundedAt
	record.UpdatedAt = refundedAt
	logger.Info("Purchase refunded")
	s.events.Publish(ctx, shared.PurchaseEventRefunded, record)

	return nil
}

// revoke removes the purchase's grant, retrying briefly before giving up
func (s *LedgerServiceImpl) revoke(ctx context.Context, record *purchase.Record) error {
	var err error
	for attempt := 1; attempt <= revokeAttempts; attempt++ {
		if err = s.granter.Revoke(ctx, record); err == nil {
			return nil
		}
		if attempt == revokeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(s.revokeBackoff):
		}
	}
	return err
}

func (s *LedgerServiceImpl) GetPurchase(ctx context.Context, purchaseID uuid.UUID, callerID string) (*purchase.Record, error) {
	record, err := s.load(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if !record.IsParty(callerID) {
		return nil, shared.NewPermissionDenied("Not authorized to view this purchase")
	}
	return record, nil
}

func (s *LedgerServiceImpl) HasAccess(ctx context.Context, buyerID, systemID string) (bool, error) {
	if buyerID == "" || systemID == "" {
		return false, shared.NewInvalidArgument("Missing required fields")
	}
	ok, err := s.granter.HasAccess(ctx, buyerID, systemID)
	if err != nil {
		s.loggerFor(ctx).Error("Failed to check access", "buyer_id", buyerID, "system_id", systemID, "error", err)
		return false, shared.NewInternal("Failed to check access", err)
	}
	return ok, nil
}

func (s *LedgerServiceImpl) load(ctx context.Context, purchaseID uuid.UUID) (*purchase.Record, error) {
	record, err := s.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, purchase.ErrPurchaseNotFound{}) {
			return nil, shared.NewNotFound("Purchase not found")
		}
		s.loggerFor(ctx).Error("Failed to load purchase", "purchase_id", purchaseID.String(), "error", err)
		return nil, shared.NewInternal("Failed to load purchase", err)
	}
	return record, nil
}

func notRefundable(record *purchase.Record, err error) error {
	var nr purchase.ErrNotRefundable
	if errors.As(err, &nr) && nr.Reason == purchase.RefundReasonWindowExpired {
		return shared.NewFailedPrecondition("Refund period expired (24 hours)")
	}
	if record.Status == shared.PurchaseStatusRefunded || record.Status == shared.PurchaseStatusRefundPending {
		return shared.NewFailedPrecondition("Purchase already refunded")
	}
	return shared.NewFailedPrecondition("Purchase not completed")
}

func chargeIdempotencyKey(id uuid.UUID) string {
	return "purchase-" + id.String()
}

func refundIdempotencyKey(id uuid.UUID) string {
	return "refund-" + id.String()
}

func chargeMetadata(record *purchase.Record) map[string]string {
	return map[string]string{
		"creatorId":     record.CreatorID,
		"buyerId":       record.BuyerID,
		"systemId":      record.SystemID,
		"systemName":    record.SystemName,
		"platform":      platformTag,
		"purchaseType":  purchaseType,
		"platformFee":   fees.FromMinorUnits(record.PlatformFeeCents).StringFixed(2),
		"creatorPayout": fees.FromMinorUnits(record.CreatorPayoutCents).StringFixed(2),
		"purchaseId":    record.ID.String(),
	}
}
