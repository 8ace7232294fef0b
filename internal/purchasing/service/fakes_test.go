package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/systems-marketplace-payments/internal/domain/access"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/platform/payments"
)

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) CreateSplitCharge(ctx context.Context, req payments.SplitChargeRequest) (*payments.SplitCharge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.SplitCharge), args.Error(1)
}

func (m *MockPaymentProcessor) RetrievePaymentStatus(ctx context.Context, paymentIntentID string) (shared.PaymentStatus, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Get(0).(shared.PaymentStatus), args.Error(1)
}

func (m *MockPaymentProcessor) RefundPayment(ctx context.Context, paymentIntentID string, idempotencyKey string) (*payments.Refund, error) {
	args := m.Called(ctx, paymentIntentID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Refund), args.Error(1)
}

type MockPayoutGate struct {
	mock.Mock
}

func (m *MockPayoutGate) VerifyPayoutReady(ctx context.Context, creatorID string) (*PayoutReadiness, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PayoutReadiness), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, eventType shared.PurchaseEventType, record *purchase.Record) {
	m.Called(ctx, eventType, record)
}

type MockReconciliationRecorder struct {
	mock.Mock
}

func (m *MockReconciliationRecorder) RecordUnpersisted(ctx context.Context, record *purchase.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type validatorFunc func(req *CreatePurchaseRequest) error

func (f validatorFunc) Validate(req *CreatePurchaseRequest) error {
	return f(req)
}

// memPurchaseRepo is an in-memory purchase.Repository with the same
// conditional-write semantics as the Mongo one
type memPurchaseRepo struct {
	mu          sync.Mutex
	records     map[uuid.UUID]purchase.Record
	transitions map[shared.PurchaseStatus]int
	createErr   error
	beforeCAS   func(id uuid.UUID, to shared.PurchaseStatus)
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{
		records:     make(map[uuid.UUID]purchase.Record),
		transitions: make(map[shared.PurchaseStatus]int),
	}
}

func (r *memPurchaseRepo) put(record purchase.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
}

func (r *memPurchaseRepo) get(id uuid.UUID) purchase.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

func (r *memPurchaseRepo) transitionCount(to shared.PurchaseStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitions[to]
}

func (r *memPurchaseRepo) Create(_ context.Context, record *purchase.Record) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.ID]; ok {
		return purchase.ErrDuplicatePurchase{ID: record.ID}
	}
	r.records[record.ID] = *record
	return nil
}

func (r *memPurchaseRepo) GetByID(_ context.Context, id uuid.UUID) (*purchase.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, purchase.ErrPurchaseNotFound{ID: id}
	}
	return &record, nil
}

func (r *memPurchaseRepo) transition(id uuid.UUID, from, to shared.PurchaseStatus, at time.Time, set func(*purchase.Record)) error {
	if r.beforeCAS != nil {
		r.beforeCAS(id, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return purchase.ErrPurchaseNotFound{ID: id}
	}
	if record.Status != from {
		return purchase.ErrStatusConflict{ID: id, Expected: from}
	}
	record.Status = to
	record.UpdatedAt = at
	if set != nil {
		set(&record)
	}
	r.records[id] = record
	r.transitions[to]++
	return nil
}

func (r *memPurchaseRepo) MarkCompleted(_ context.Context, id uuid.UUID, paidAt time.Time) error {
	return r.transition(id, shared.PurchaseStatusPendingPayment, shared.PurchaseStatusCompleted, paidAt, func(rec *purchase.Record) {
		rec.PaidAt = &paidAt
	})
}

func (r *memPurchaseRepo) ClaimRefund(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(id, shared.PurchaseStatusCompleted, shared.PurchaseStatusRefundPending, at, nil)
}

func (r *memPurchaseRepo) ReleaseRefund(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(id, shared.PurchaseStatusRefundPending, shared.PurchaseStatusCompleted, at, nil)
}

func (r *memPurchaseRepo) MarkRefunded(_ context.Context, id uuid.UUID, refundID string, refundedAt time.Time) error {
	return r.transition(id, shared.PurchaseStatusRefundPending, shared.PurchaseStatusRefunded, refundedAt, func(rec *purchase.Record) {
		rec.RefundID = refundID
		rec.RefundedAt = &refundedAt
	})
}

func (r *memPurchaseRepo) ListStale(_ context.Context, status shared.PurchaseStatus, olderThan time.Time, limit int) ([]*purchase.Record, error) {
	return nil, errors.New("not used")
}

func (r *memPurchaseRepo) MarkSwept(_ context.Context, id uuid.UUID, at time.Time) error {
	return errors.New("not used")
}

// memGranter keeps grants in a map keyed like the Mongo collection
type memGranter struct {
	mu        sync.Mutex
	grants    map[string]access.Grant
	upserts   int
	grantErr  error
	revokeErr error

	// revokeFailures limits revokeErr to that many calls when non-zero
	revokeFailures int
	revokeCalls    int
}

func newMemGranter() *memGranter {
	return &memGranter{grants: make(map[string]access.Grant)}
}

func (g *memGranter) Grant(_ context.Context, record *purchase.Record, purchasedAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grantErr != nil {
		return g.grantErr
	}
	g.upserts++
	g.grants[access.Key(record.BuyerID, record.SystemID)] = access.Grant{
		BuyerID:        record.BuyerID,
		SystemID:       record.SystemID,
		PurchaseID:     record.ID,
		CreatorID:      record.CreatorID,
		SystemName:     record.SystemName,
		PurchasedAt:    purchasedAt,
		CanApplyToBets: true,
	}
	return nil
}

func (g *memGranter) Revoke(_ context.Context, record *purchase.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revokeCalls++
	if err := g.revokeErr; err != nil {
		if g.revokeFailures > 0 {
			g.revokeFailures--
			if g.revokeFailures == 0 {
				g.revokeErr = nil
			}
		}
		return err
	}
	key := access.Key(record.BuyerID, record.SystemID)
	if grant, ok := g.grants[key]; ok && grant.PurchaseID == record.ID {
		delete(g.grants, key)
	}
	return nil
}

func (g *memGranter) HasAccess(_ context.Context, buyerID, systemID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.grants[access.Key(buyerID, systemID)]
	return ok, nil
}

func (g *memGranter) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.grants)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
