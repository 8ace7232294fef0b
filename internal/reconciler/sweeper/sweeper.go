package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/systems-marketplace-payments/internal/config"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

// Ledger is the part of the ledger service the sweeper drives
type Ledger interface {
	ReconcilePayment(ctx context.Context, purchaseID uuid.UUID) (*service.PurchaseStatus, error)
	ResumeRefund(ctx context.Context, purchaseID uuid.UUID) error
}

// Sweeper finishes purchases left in a non-terminal status: payments nobody
// polled for, and refunds whose local bookkeeping failed after the processor
// had already refunded.
type Sweeper struct {
	purchases    purchase.Repository
	ledger       Ledger
	pool         *ants.Pool
	logger       *slog.Logger
	pollInterval time.Duration
	staleAfter   time.Duration
	batchSize    int
	now          func() time.Time
}

// Result counts the outcome of one pass
type Result struct {
	Swept  int64
	Failed int64
}

func NewSweeper(
	cfg *config.ReconcilerConfig,
	poolSize int,
	purchases purchase.Repository,
	ledger Ledger,
	logger *slog.Logger,
) (*Sweeper, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweeper pool: %w", err)
	}

	return &Sweeper{
		purchases:    purchases,
		ledger:       ledger,
		pool:         pool,
		logger:       logger,
		pollInterval: cfg.PollingInterval,
		staleAfter:   cfg.StaleAfter,
		batchSize:    cfg.BatchSize,
		now:          time.Now,
	}, nil
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting purchase sweeper",
		"poll_interval", s.pollInterval.String(),
		"stale_after", s.staleAfter.String(),
		"batch_size", s.batchSize,
		"pool_size", s.pool.Cap(),
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Purchase sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass over stale pending payments and stuck refunds and
// waits for every submitted task to finish
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	sweptAt := s.now().UTC()
	olderThan := sweptAt.Add(-s.staleAfter)

	pending, err := s.purchases.ListStale(ctx, shared.PurchaseStatusPendingPayment, olderThan, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list stale pending purchases: %w", err)
	}
	refunding, err := s.purchases.ListStale(ctx, shared.PurchaseStatusRefundPending, olderThan, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list stuck refunds: %w", err)
	}

	if len(pending) == 0 && len(refunding) == 0 {
		s.logger.Debug("Nothing to sweep")
		return Result{}, nil
	}

	var (
		wg     sync.WaitGroup
		swept  atomic.Int64
		failed atomic.Int64
	)

	submit := func(record *purchase.Record, task func(context.Context, uuid.UUID) error) {
		wg.Add(1)
		id := record.ID
		err := s.pool.Submit(func() {
			defer wg.Done()
			// stamp the visit first so records that never settle rotate to the back
			if err := s.purchases.MarkSwept(ctx, id, sweptAt); err != nil {
				s.logger.Warn("Failed to record sweep visit", "purchase_id", id.String(), "error", err)
			}
			if err := task(ctx, id); err != nil {
				failed.Add(1)
				s.logger.Warn("Sweep task failed", "purchase_id", id.String(), "error", err)
				return
			}
			swept.Add(1)
		})
		if err != nil {
			wg.Done()
			failed.Add(1)
			s.logger.Error("Failed to submit sweep task to worker pool", "purchase_id", id.String(), "error", err)
		}
	}

	for _, record := range pending {
		submit(record, s.reconcile)
	}
	for _, record := range refunding {
		submit(record, s.ledger.ResumeRefund)
	}
	wg.Wait()

	result := Result{Swept: swept.Load(), Failed: failed.Load()}
	s.logger.Info("Sweep finished",
		"pending_payment", len(pending),
		"refund_pending", len(refunding),
		"swept", result.Swept,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Sweeper) reconcile(ctx context.Context, id uuid.UUID) error {
	status, err := s.ledger.ReconcilePayment(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Debug("Reconciled pending purchase", "purchase_id", id.String(), "status", status.Status, "payment_status", status.PaymentStatus)
	return nil
}

// Shutdown releases the worker pool
func (s *Sweeper) Shutdown() {
	s.logger.Info("Shutting down sweeper pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *Sweeper) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *Sweeper) Capacity() int {
	return s.pool.Cap()
}
