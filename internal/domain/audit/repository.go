package audit

import (
	"context"

	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// Repository is the append-only trail of purchase lifecycle events
type Repository interface {
	// Append stores the event and reports whether it was new. Replays of an
	// already stored event id are ignored.
	Append(ctx context.Context, event *shared.PurchaseEvent) (bool, error)
}
