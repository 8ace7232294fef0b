// Package postgres provides PostgreSQL implementations of the domain repositories
// for creator payout accounts, reconciliation work and the purchase audit trail.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/systems-marketplace-payments/internal/domain/creator"
	"github.com/systems-marketplace-payments/internal/platform/persistence"
)

// CreatorAccountRepository implements the creator.Repository interface for PostgreSQL
type CreatorAccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCreatorAccountRepository creates a new PostgreSQL connected account repository
func NewCreatorAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) creator.Repository {
	return &CreatorAccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByCreatorID retrieves the connected account of a creator.
// Returns ErrConnectedAccountNotFound if the creator never connected one.
func (r *CreatorAccountRepository) GetByCreatorID(ctx context.Context, creatorID string) (*creator.ConnectedAccount, error) {
	query := `
		SELECT creator_id, account_id, status, charges_enabled, payouts_enabled, details_submitted,
			business_name, current_requirements, pending_verification, created_at, updated_at, last_checked_at
		FROM creator_integrations
		WHERE creator_id = $1
	`

	var acc creator.ConnectedAccount
	err := r.querier.QueryRow(ctx, query, creatorID).Scan(
		&acc.CreatorID,
		&acc.AccountID,
		&acc.Status,
		&acc.ChargesEnabled,
		&acc.PayoutsEnabled,
		&acc.DetailsSubmitted,
		&acc.BusinessName,
		&acc.CurrentRequirements,
		&acc.PendingVerification,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&acc.LastCheckedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, creator.ErrConnectedAccountNotFound{CreatorID: creatorID}
		}
		r.logger.Error("Failed to get connected account", "creator_id", creatorID, "error", err)
		return nil, fmt.Errorf("failed to get connected account: %w", err)
	}

	return &acc, nil
}

// Create stores a new connected account.
// Returns ErrAlreadyConnected if the creator already has one on file.
func (r *CreatorAccountRepository) Create(ctx context.Context, acc *creator.ConnectedAccount) error {
	query := `
		INSERT INTO creator_integrations (creator_id, account_id, status, charges_enabled, payouts_enabled,
			details_submitted, business_name, current_requirements, pending_verification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (creator_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		acc.CreatorID,
		acc.AccountID,
		acc.Status,
		acc.ChargesEnabled,
		acc.PayoutsEnabled,
		acc.DetailsSubmitted,
		acc.BusinessName,
		acc.CurrentRequirements,
		acc.PendingVerification,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create connected account",
			"creator_id", acc.CreatorID,
			"account_id", acc.AccountID,
			"error", err)
		return fmt.Errorf("failed to create connected account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return creator.ErrAlreadyConnected{CreatorID: acc.CreatorID}
	}

	return nil
}

// UpdateSnapshot persists the verification state last fetched from the processor
func (r *CreatorAccountRepository) UpdateSnapshot(ctx context.Context, acc *creator.ConnectedAccount) error {
	query := `
		UPDATE creator_integrations
		SET status = $1, charges_enabled = $2, payouts_enabled = $3, details_submitted = $4,
			business_name = $5, current_requirements = $6, pending_verification = $7,
			updated_at = $8, last_checked_at = $9
		WHERE creator_id = $10
	`

	result, err := r.querier.Exec(ctx, query,
		acc.Status,
		acc.ChargesEnabled,
		acc.PayoutsEnabled,
		acc.DetailsSubmitted,
		acc.BusinessName,
		acc.CurrentRequirements,
		acc.PendingVerification,
		acc.UpdatedAt,
		acc.LastCheckedAt,
		acc.CreatorID,
	)
	if err != nil {
		r.logger.Error("Failed to update connected account snapshot",
			"creator_id", acc.CreatorID,
			"error", err)
		return fmt.Errorf("failed to update connected account snapshot: %w", err)
	}

	if result.RowsAffected() == 0 {
		return creator.ErrConnectedAccountNotFound{CreatorID: acc.CreatorID}
	}

	return nil
}

// Delete removes the creator's connected account reference. The account
// itself stays at the processor.
func (r *CreatorAccountRepository) Delete(ctx context.Context, creatorID string) error {
	query := `
		DELETE FROM creator_integrations
		WHERE creator_id = $1
	`

	result, err := r.querier.Exec(ctx, query, creatorID)
	if err != nil {
		r.logger.Error("Failed to delete connected account", "creator_id", creatorID, "error", err)
		return fmt.Errorf("failed to delete connected account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return creator.ErrConnectedAccountNotFound{CreatorID: creatorID}
	}

	return nil
}
