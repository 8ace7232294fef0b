package components

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/systems-marketplace-payments/internal/domain/access"
	"github.com/systems-marketplace-payments/internal/domain/creator"
	"github.com/systems-marketplace-payments/internal/domain/outbox"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/platform/payments"
)

type MockCreatorRepo struct {
	mock.Mock
}

func (m *MockCreatorRepo) GetByCreatorID(ctx context.Context, creatorID string) (*creator.ConnectedAccount, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*creator.ConnectedAccount), args.Error(1)
}

func (m *MockCreatorRepo) Create(ctx context.Context, account *creator.ConnectedAccount) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockCreatorRepo) UpdateSnapshot(ctx context.Context, account *creator.ConnectedAccount) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockCreatorRepo) Delete(ctx context.Context, creatorID string) error {
	return m.Called(ctx, creatorID).Error(0)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateSplitCharge(ctx context.Context, req payments.SplitChargeRequest) (*payments.SplitCharge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.SplitCharge), args.Error(1)
}

func (m *MockProcessor) RetrievePaymentStatus(ctx context.Context, paymentIntentID string) (shared.PaymentStatus, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Get(0).(shared.PaymentStatus), args.Error(1)
}

func (m *MockProcessor) RefundPayment(ctx context.Context, paymentIntentID string, idempotencyKey string) (*payments.Refund, error) {
	args := m.Called(ctx, paymentIntentID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Refund), args.Error(1)
}

func (m *MockProcessor) RetrieveConnectedAccount(ctx context.Context, accountID string) (*payments.ConnectedAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.ConnectedAccount), args.Error(1)
}

func (m *MockProcessor) CreateConnectedAccount(ctx context.Context, req payments.NewConnectedAccountRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProcessor) CreateAccountLink(ctx context.Context, accountID string) (*payments.AccountLink, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.AccountLink), args.Error(1)
}

type MockGrantRepo struct {
	mock.Mock
}

func (m *MockGrantRepo) Upsert(ctx context.Context, grant *access.Grant) error {
	return m.Called(ctx, grant).Error(0)
}

func (m *MockGrantRepo) Delete(ctx context.Context, buyerID, systemID string, purchaseID uuid.UUID) error {
	return m.Called(ctx, buyerID, systemID, purchaseID).Error(0)
}

func (m *MockGrantRepo) Get(ctx context.Context, buyerID, systemID string) (*access.Grant, error) {
	args := m.Called(ctx, buyerID, systemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.Grant), args.Error(1)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockEventProducer struct {
	mock.Mock
}

func (m *MockEventProducer) PublishEvent(ctx context.Context, event *shared.PurchaseEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventProducer) Close() error {
	return m.Called().Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockPurchaseRepo struct {
	mock.Mock
}

func (m *MockPurchaseRepo) Create(ctx context.Context, record *purchase.Record) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockPurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*purchase.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.Record), args.Error(1)
}

func (m *MockPurchaseRepo) MarkCompleted(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	return m.Called(ctx, id, paidAt).Error(0)
}

func (m *MockPurchaseRepo) ClaimRefund(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockPurchaseRepo) ReleaseRefund(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockPurchaseRepo) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, refundedAt time.Time) error {
	return m.Called(ctx, id, refundID, refundedAt).Error(0)
}

func (m *MockPurchaseRepo) ListStale(ctx context.Context, status shared.PurchaseStatus, olderThan time.Time, limit int) ([]*purchase.Record, error) {
	args := m.Called(ctx, status, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*purchase.Record), args.Error(1)
}

func (m *MockPurchaseRepo) MarkSwept(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}
