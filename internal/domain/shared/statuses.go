package shared

// PurchaseStatus defines the purchase lifecycle states
type PurchaseStatus string

const (
	PurchaseStatusPendingPayment PurchaseStatus = "pending_payment"
	PurchaseStatusCompleted      PurchaseStatus = "completed"
	// PurchaseStatusRefundPending marks a purchase claimed by a refund that
	// has not been finalized yet. Only one caller can claim it.
	PurchaseStatusRefundPending PurchaseStatus = "refund_pending"
	PurchaseStatusRefunded      PurchaseStatus = "refunded"
)

// IsTerminal reports whether no further transition is possible
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusRefunded
}

// ConnectedAccountStatus mirrors the onboarding state of a creator's payout account
type ConnectedAccountStatus string

const (
	ConnectedAccountStatusOnboardingStarted ConnectedAccountStatus = "onboarding_started"
	ConnectedAccountStatusPending           ConnectedAccountStatus = "pending"
	ConnectedAccountStatusActive            ConnectedAccountStatus = "active"
)

// PaymentStatus is the processor-side status of a payment intent
type PaymentStatus string

const (
	PaymentStatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentStatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	PaymentStatusRequiresAction        PaymentStatus = "requires_action"
	PaymentStatusProcessing            PaymentStatus = "processing"
	PaymentStatusRequiresCapture       PaymentStatus = "requires_capture"
	PaymentStatusCanceled              PaymentStatus = "canceled"
	PaymentStatusSucceeded             PaymentStatus = "succeeded"
)

// OutboxStatus defines reconciliation message states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToProcess OutboxStatus = "FAILED_TO_PROCESS"
)

// ReconciliationKind names the follow-up work a reconciliation message carries
type ReconciliationKind string

const (
	// ReconciliationKindPersistPurchase re-inserts a purchase record whose
	// charge was created but whose local write failed.
	ReconciliationKindPersistPurchase ReconciliationKind = "persist_purchase"
)
