package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// Message is a unit of reconciliation work stored in Postgres and retried by
// the reconciler until it succeeds or runs out of attempts
type Message struct {
	ID            int64                     `json:"id"`
	PurchaseID    uuid.UUID                 `json:"purchase_id"`
	Kind          shared.ReconciliationKind `json:"kind"`
	Payload       json.RawMessage           `json:"payload"`
	Status        shared.OutboxStatus       `json:"status"`
	Attempts      int                       `json:"attempts"`
	CreatedAt     time.Time                 `json:"created_at"`
	LastAttemptAt *time.Time                `json:"last_attempt_at,omitempty"`
}

// NewPersistPurchaseMessage captures a purchase record whose local insert failed
func NewPersistPurchaseMessage(record *purchase.Record) (*Message, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	return &Message{
		PurchaseID: record.ID,
		Kind:       shared.ReconciliationKindPersistPurchase,
		Payload:    payload,
		Status:     shared.OutboxStatusPending,
		Attempts:   0,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToProcess
	now := time.Now()
	m.LastAttemptAt = &now
}

// PurchaseRecord decodes the payload of a persist_purchase message
func (m *Message) PurchaseRecord() (*purchase.Record, error) {
	var record purchase.Record
	if err := json.Unmarshal(m.Payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
