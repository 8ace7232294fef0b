package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/systems-marketplace-payments/internal/domain/access"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/fees"
	"github.com/systems-marketplace-payments/internal/platform/payments"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	svc        *LedgerServiceImpl
	repo       *memPurchaseRepo
	granter    *memGranter
	processor  *MockPaymentProcessor
	gate       *MockPayoutGate
	events     *MockEventPublisher
	reconciler *MockReconciliationRecorder
	validate   func(req *CreatePurchaseRequest) error
	clock      time.Time
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	f := &ledgerFixture{
		repo:       newMemPurchaseRepo(),
		granter:    newMemGranter(),
		processor:  new(MockPaymentProcessor),
		gate:       new(MockPayoutGate),
		events:     new(MockEventPublisher),
		reconciler: new(MockReconciliationRecorder),
		validate:   func(*CreatePurchaseRequest) error { return nil },
		clock:      testNow,
	}
	calculator := fees.NewCalculator(fees.Rates{
		PlatformFeePercent:   decimal.RequireFromString("0.06"),
		ProcessingFeePercent: decimal.RequireFromString("0.029"),
		ProcessingFixedCents: 30,
	})
	f.svc = NewLedgerService(
		f.repo,
		f.processor,
		calculator,
		validatorFunc(func(req *CreatePurchaseRequest) error { return f.validate(req) }),
		f.gate,
		f.granter,
		f.events,
		f.reconciler,
		LedgerConfig{Currency: "usd", RefundWindow: 24 * time.Hour},
		newTestLogger(),
	)
	f.svc.now = func() time.Time { return f.clock }
	f.svc.revokeBackoff = time.Millisecond
	f.events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	return f
}

func (f *ledgerFixture) seed(status shared.PurchaseStatus, paidAgo time.Duration) purchase.Record {
	record := purchase.Record{
		ID:                 uuid.New(),
		BuyerID:            "buyer-1",
		CreatorID:          "creator-1",
		SystemID:           "system-1",
		SystemName:         "Sharp NBA Unders",
		PriceCents:         5000,
		PlatformFeeCents:   300,
		TotalAmountCents:   5300,
		CreatorPayoutCents: 5000,
		PlatformFeePercent: "0.06",
		Currency:           "usd",
		ConnectedAccountID: "acct_1",
		PaymentIntentID:    "pi_" + uuid.NewString(),
		Status:             status,
		CreatedAt:          f.clock.Add(-paidAgo - time.Minute),
		UpdatedAt:          f.clock.Add(-paidAgo),
	}
	if status == shared.PurchaseStatusCompleted {
		paidAt := f.clock.Add(-paidAgo)
		record.PaidAt = &paidAt
	}
	f.repo.put(record)
	return record
}

func (f *ledgerFixture) seedCompletedWithGrant(t *testing.T, paidAgo time.Duration) purchase.Record {
	record := f.seed(shared.PurchaseStatusCompleted, paidAgo)
	require.NoError(t, f.granter.Grant(context.Background(), &record, *record.PaidAt))
	return record
}

func assertKind(t *testing.T, err error, kind shared.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, shared.KindOf(err), "unexpected error: %v", err)
}

func validRequest() *CreatePurchaseRequest {
	return &CreatePurchaseRequest{
		BuyerID:    "buyer-1",
		CreatorID:  "creator-1",
		SystemID:   "system-1",
		SystemName: "Sharp NBA Unders",
		PriceCents: 5000,
	}
}

func TestCreatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("ChargesPricePlusFeeToCreatorAccount", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Ready: true, AccountID: "acct_1"}, nil)

		var captured payments.SplitChargeRequest
		f.processor.On("CreateSplitCharge", ctx, mock.AnythingOfType("payments.SplitChargeRequest")).
			Run(func(args mock.Arguments) { captured = args.Get(1).(payments.SplitChargeRequest) }).
			Return(&payments.SplitCharge{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)

		result, err := f.svc.CreatePurchase(ctx, validRequest())
		require.NoError(t, err)

		assert.Equal(t, "pi_1_secret", result.ClientSecret)
		assert.Equal(t, int64(300), result.Purchase.PlatformFeeCents)
		assert.Equal(t, int64(5300), result.Purchase.TotalAmountCents)
		assert.Equal(t, int64(5000), result.Purchase.CreatorPayoutCents)
		assert.Equal(t, "0.06", result.Purchase.PlatformFeePercent)

		assert.Equal(t, int64(5300), captured.AmountCents)
		assert.Equal(t, int64(300), captured.ApplicationFeeCents)
		assert.Equal(t, "acct_1", captured.Destination)
		assert.Equal(t, "usd", captured.Currency)
		assert.Equal(t, "purchase-"+result.Purchase.ID.String(), captured.IdempotencyKey)
		assert.Equal(t, "3.00", captured.Metadata["platformFee"])
		assert.Equal(t, "50.00", captured.Metadata["creatorPayout"])
		assert.Equal(t, "systems_app", captured.Metadata["platform"])
		assert.Equal(t, "system", captured.Metadata["purchaseType"])
		assert.Equal(t, result.Purchase.ID.String(), captured.Metadata["purchaseId"])

		stored := f.repo.get(result.Purchase.ID)
		assert.Equal(t, shared.PurchaseStatusPendingPayment, stored.Status)
		assert.Equal(t, "pi_1", stored.PaymentIntentID)
		assert.Equal(t, "acct_1", stored.ConnectedAccountID)
		f.events.AssertCalled(t, "Publish", ctx, shared.PurchaseEventCreated, mock.Anything)
	})

	t.Run("ValidationFailsBeforeAnyExternalCall", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.validate = func(*CreatePurchaseRequest) error {
			return shared.NewInvalidArgument("Cannot purchase your own system")
		}

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindInvalidArgument)
		f.gate.AssertNotCalled(t, "VerifyPayoutReady", mock.Anything, mock.Anything)
		f.processor.AssertNotCalled(t, "CreateSplitCharge", mock.Anything, mock.Anything)
	})

	t.Run("CreatorNotVerifiedIssuesNoCharge", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Reason: ReadinessNotVerified, AccountID: "acct_1"}, nil)

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindFailedPrecondition)
		assert.Equal(t, "Creator account not verified for payments", shared.MessageOf(err))
		f.processor.AssertNotCalled(t, "CreateSplitCharge", mock.Anything, mock.Anything)
	})

	t.Run("CreatorNotConnected", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Reason: ReadinessNotConnected}, nil)

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindFailedPrecondition)
		assert.Equal(t, "Creator has not connected Stripe account", shared.MessageOf(err))
	})

	t.Run("GateFailureIsInternal", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").Return(nil, errors.New("connection refused"))

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindInternal)
		assert.NotContains(t, shared.MessageOf(err), "connection refused")
	})

	t.Run("InvalidRequestFromProcessor", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Ready: true, AccountID: "acct_1"}, nil)
		f.processor.On("CreateSplitCharge", ctx, mock.Anything).
			Return(nil, &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such destination"})

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, "Invalid payment request. Please contact support.", shared.MessageOf(err))
		f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ProcessorFailure", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Ready: true, AccountID: "acct_1"}, nil)
		f.processor.On("CreateSplitCharge", ctx, mock.Anything).Return(nil, errors.New("timeout"))

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, "Failed to create payment. Please try again.", shared.MessageOf(err))
	})

	t.Run("StoreFailureQueuesReconciliation", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.repo.createErr = errors.New("mongo unavailable")
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Ready: true, AccountID: "acct_1"}, nil)
		f.processor.On("CreateSplitCharge", ctx, mock.Anything).
			Return(&payments.SplitCharge{ID: "pi_2", ClientSecret: "pi_2_secret"}, nil)
		f.reconciler.On("RecordUnpersisted", ctx, mock.MatchedBy(func(r *purchase.Record) bool {
			return r.PaymentIntentID == "pi_2"
		})).Return(nil)

		result, err := f.svc.CreatePurchase(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, "pi_2_secret", result.ClientSecret)
		f.reconciler.AssertExpectations(t)
	})

	t.Run("StoreAndReconciliationFailure", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.repo.createErr = errors.New("mongo unavailable")
		f.gate.On("VerifyPayoutReady", ctx, "creator-1").
			Return(&PayoutReadiness{Ready: true, AccountID: "acct_1"}, nil)
		f.processor.On("CreateSplitCharge", ctx, mock.Anything).
			Return(&payments.SplitCharge{ID: "pi_3", ClientSecret: "pi_3_secret"}, nil)
		f.reconciler.On("RecordUnpersisted", ctx, mock.Anything).Return(errors.New("postgres unavailable"))

		_, err := f.svc.CreatePurchase(ctx, validRequest())
		assertKind(t, err, shared.KindInternal)
	})
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("SucceededCompletesAndGrantsOnce", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)
		f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
			Return(shared.PaymentStatusSucceeded, nil).Once()

		status, err := f.svc.ConfirmPayment(ctx, record.ID, "buyer-1")
		require.NoError(t, err)
		assert.Equal(t, shared.PurchaseStatusCompleted, status.Status)
		assert.Equal(t, shared.PaymentStatusSucceeded, status.PaymentStatus)

		// second call sees completed and does not touch the processor
		status, err = f.svc.ConfirmPayment(ctx, record.ID, "creator-1")
		require.NoError(t, err)
		assert.Equal(t, shared.PurchaseStatusCompleted, status.Status)
		assert.Empty(t, status.PaymentStatus)

		stored := f.repo.get(record.ID)
		require.NotNil(t, stored.PaidAt)
		assert.Equal(t, testNow, *stored.PaidAt)
		assert.Equal(t, 1, f.granter.count())
		assert.Equal(t, 1, f.repo.transitionCount(shared.PurchaseStatusCompleted))
		f.processor.AssertExpectations(t)
		f.events.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("StillProcessing", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)
		f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
			Return(shared.PaymentStatusProcessing, nil)

		status, err := f.svc.ConfirmPayment(ctx, record.ID, "buyer-1")
		require.NoError(t, err)
		assert.Equal(t, shared.PurchaseStatusPendingPayment, status.Status)
		assert.Equal(t, shared.PaymentStatusProcessing, status.PaymentStatus)
		assert.Equal(t, 0, f.granter.count())
	})

	t.Run("StrangerIsDenied", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)

		_, err := f.svc.ConfirmPayment(ctx, record.ID, "someone-else")
		assertKind(t, err, shared.KindPermissionDenied)
		f.processor.AssertNotCalled(t, "RetrievePaymentStatus", mock.Anything, mock.Anything)
	})

	t.Run("UnknownPurchase", func(t *testing.T) {
		f := newLedgerFixture(t)

		_, err := f.svc.ConfirmPayment(ctx, uuid.New(), "buyer-1")
		assertKind(t, err, shared.KindNotFound)
	})

	t.Run("GrantFailureKeepsPending", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.granter.grantErr = errors.New("mongo unavailable")
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)
		f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
			Return(shared.PaymentStatusSucceeded, nil)

		_, err := f.svc.ConfirmPayment(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, shared.PurchaseStatusPendingPayment, f.repo.get(record.ID).Status)
	})

	t.Run("ProcessorFailure", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)
		f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
			Return(shared.PaymentStatus(""), errors.New("timeout"))

		_, err := f.svc.ConfirmPayment(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindInternal)
	})

	t.Run("LostRaceToRefundRevokesLateGrant", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)
		f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
			Return(shared.PaymentStatusSucceeded, nil)
		f.repo.beforeCAS = func(id uuid.UUID, to shared.PurchaseStatus) {
			moved := f.repo.get(id)
			moved.Status = shared.PurchaseStatusRefunded
			f.repo.put(moved)
		}

		status, err := f.svc.ConfirmPayment(ctx, record.ID, "buyer-1")
		require.NoError(t, err)
		assert.Equal(t, shared.PurchaseStatusRefunded, status.Status)
		assert.Equal(t, 0, f.granter.count())
		f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestConfirmPayment_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	record := f.seed(shared.PurchaseStatusPendingPayment, 0)
	f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
		Return(shared.PaymentStatusSucceeded, nil)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := f.svc.ConfirmPayment(ctx, record.ID, "buyer-1")
			if err == nil && status.Status != shared.PurchaseStatusCompleted {
				err = errors.New("unexpected status " + string(status.Status))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.repo.transitionCount(shared.PurchaseStatusCompleted))
	assert.Equal(t, 1, f.granter.count())
	f.events.AssertNumberOfCalls(t, "Publish", 1)
}

func TestReconcilePayment_SkipsCallerCheck(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	record := f.seed(shared.PurchaseStatusPendingPayment, 0)
	f.processor.On("RetrievePaymentStatus", ctx, record.PaymentIntentID).
		Return(shared.PaymentStatusSucceeded, nil)

	status, err := f.svc.ReconcilePayment(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.PurchaseStatusCompleted, status.Status)
	assert.Equal(t, 1, f.granter.count())
}

func TestCancelPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("InsideWindowRefundsAndRevokes", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, 23*time.Hour)
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, "refund-"+record.ID.String()).
			Return(&payments.Refund{ID: "re_1", Status: "succeeded"}, nil).Once()

		require.NoError(t, f.svc.CancelPurchase(ctx, record.ID, "buyer-1"))

		stored := f.repo.get(record.ID)
		assert.Equal(t, shared.PurchaseStatusRefunded, stored.Status)
		assert.Equal(t, "re_1", stored.RefundID)
		require.NotNil(t, stored.RefundedAt)
		assert.Equal(t, 0, f.granter.count())
		f.events.AssertCalled(t, "Publish", ctx, shared.PurchaseEventRefunded, mock.Anything)

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindFailedPrecondition)
		f.processor.AssertExpectations(t)
	})

	t.Run("WindowExpired", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, 25*time.Hour)

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindFailedPrecondition)
		assert.Equal(t, "Refund period expired (24 hours)", shared.MessageOf(err))
		assert.Equal(t, shared.PurchaseStatusCompleted, f.repo.get(record.ID).Status)
		assert.Equal(t, 1, f.granter.count())
		f.processor.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PendingPurchase", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seed(shared.PurchaseStatusPendingPayment, 0)

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindFailedPrecondition)
		assert.Equal(t, "Purchase not completed", shared.MessageOf(err))
	})

	t.Run("CreatorCannotCancel", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, time.Hour)

		err := f.svc.CancelPurchase(ctx, record.ID, "creator-1")
		assertKind(t, err, shared.KindPermissionDenied)
	})

	t.Run("RejectedRefundReleasesClaim", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, time.Hour)
		declined := &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 400, Msg: "charge is disputed"}
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, mock.Anything).
			Return(nil, declined)

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, "Failed to refund payment. Please try again.", shared.MessageOf(err))
		assert.Equal(t, shared.PurchaseStatusCompleted, f.repo.get(record.ID).Status)
		assert.Equal(t, 1, f.granter.count())
	})

	t.Run("UnknownRefundOutcomeKeepsClaimForResume", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, 23*time.Hour+50*time.Minute)
		key := "refund-" + record.ID.String()
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, key).
			Return(nil, context.DeadlineExceeded).Once()
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, key).
			Return(&payments.Refund{ID: "re_1", Status: "succeeded"}, nil).Once()

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, shared.PurchaseStatusRefundPending, f.repo.get(record.ID).Status)
		assert.Equal(t, 1, f.granter.count())
		assert.Zero(t, f.repo.transitionCount(shared.PurchaseStatusCompleted))

		// past the window the claim still settles
		f.clock = f.clock.Add(time.Hour)
		require.NoError(t, f.svc.ResumeRefund(ctx, record.ID))

		stored := f.repo.get(record.ID)
		assert.Equal(t, shared.PurchaseStatusRefunded, stored.Status)
		assert.Equal(t, "re_1", stored.RefundID)
		assert.Equal(t, 0, f.granter.count())
		f.processor.AssertExpectations(t)
	})

	t.Run("ProcessorOutageKeepsClaim", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, time.Hour)
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, mock.Anything).
			Return(nil, &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 503})

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, shared.PurchaseStatusRefundPending, f.repo.get(record.ID).Status)

		err = f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindFailedPrecondition)
	})

	t.Run("TransientRevokeFailureIsRetried", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, time.Hour)
		f.granter.revokeErr = errors.New("mongo primary stepped down")
		f.granter.revokeFailures = 2
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, mock.Anything).
			Return(&payments.Refund{ID: "re_1"}, nil).Once()

		require.NoError(t, f.svc.CancelPurchase(ctx, record.ID, "buyer-1"))
		assert.Equal(t, 3, f.granter.revokeCalls)
		assert.Equal(t, 0, f.granter.count())
		assert.Equal(t, shared.PurchaseStatusRefunded, f.repo.get(record.ID).Status)
	})

	t.Run("NoChargeToRefund", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, time.Hour)
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, mock.Anything).
			Return(nil, payments.ErrNoCharge)

		err := f.svc.CancelPurchase(ctx, record.ID, "buyer-1")
		assertKind(t, err, shared.KindInternal)
		assert.Equal(t, shared.PurchaseStatusCompleted, f.repo.get(record.ID).Status)
	})

	t.Run("RevokeFailureLeavesRefundPendingForResume", func(t *testing.T) {
		f := newLedgerFixture(t)
		record := f.seedCompletedWithGrant(t, time.Hour)
		f.granter.revokeErr = errors.New("mongo unavailable")
		f.processor.On("RefundPayment", ctx, record.PaymentIntentID, "refund-"+record.ID.String()).
			Return(&payments.Refund{ID: "re_1"}, nil).Twice()

		require.NoError(t, f.svc.CancelPurchase(ctx, record.ID, "buyer-1"))
		assert.Equal(t, shared.PurchaseStatusRefundPending, f.repo.get(record.ID).Status)

		f.granter.revokeErr = nil
		require.NoError(t, f.svc.ResumeRefund(ctx, record.ID))

		stored := f.repo.get(record.ID)
		assert.Equal(t, shared.PurchaseStatusRefunded, stored.Status)
		assert.Equal(t, "re_1", stored.RefundID)
		assert.Equal(t, 0, f.granter.count())
		f.processor.AssertExpectations(t)
	})
}

func TestResumeRefund_KeepsNewerPurchaseGrant(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	older := f.seed(shared.PurchaseStatusRefundPending, 3*time.Hour)
	newer := f.seedCompletedWithGrant(t, time.Hour)
	f.processor.On("RefundPayment", ctx, older.PaymentIntentID, "refund-"+older.ID.String()).
		Return(&payments.Refund{ID: "re_old"}, nil).Once()

	require.NoError(t, f.svc.ResumeRefund(ctx, older.ID))

	assert.Equal(t, shared.PurchaseStatusRefunded, f.repo.get(older.ID).Status)
	assert.Equal(t, shared.PurchaseStatusCompleted, f.repo.get(newer.ID).Status)
	ok, err := f.svc.HasAccess(ctx, "buyer-1", "system-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, newer.ID, f.granter.grants[access.Key("buyer-1", "system-1")].PurchaseID)
}

func TestResumeRefund_IgnoresOtherStatuses(t *testing.T) {
	f := newLedgerFixture(t)
	record := f.seedCompletedWithGrant(t, time.Hour)

	require.NoError(t, f.svc.ResumeRefund(context.Background(), record.ID))
	assert.Equal(t, shared.PurchaseStatusCompleted, f.repo.get(record.ID).Status)
	f.processor.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetPurchase(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	record := f.seed(shared.PurchaseStatusPendingPayment, 0)

	got, err := f.svc.GetPurchase(ctx, record.ID, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	_, err = f.svc.GetPurchase(ctx, record.ID, "someone-else")
	assertKind(t, err, shared.KindPermissionDenied)
	assert.Equal(t, "Not authorized to view this purchase", shared.MessageOf(err))

	_, err = f.svc.GetPurchase(ctx, uuid.New(), "buyer-1")
	assertKind(t, err, shared.KindNotFound)
}

func TestHasAccess(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedCompletedWithGrant(t, time.Hour)

	ok, err := f.svc.HasAccess(ctx, "buyer-1", "system-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.HasAccess(ctx, "buyer-2", "system-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.HasAccess(ctx, "", "system-1")
	assertKind(t, err, shared.KindInvalidArgument)
}

func TestChargeMetadata(t *testing.T) {
	record := &purchase.Record{
		ID:                 uuid.New(),
		PlatformFeeCents:   5,
		CreatorPayoutCents: 99,
	}
	md := chargeMetadata(record)
	assert.Equal(t, "0.05", md["platformFee"])
	assert.Equal(t, "0.99", md["creatorPayout"])
	assert.True(t, strings.HasPrefix(chargeIdempotencyKey(record.ID), "purchase-"))
	assert.True(t, strings.HasPrefix(refundIdempotencyKey(record.ID), "refund-"))
}
