package billing

import "github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"

// PaymentEvent is the normalized shape extracted from a gateway webhook
// payload. UserID is zero when the gateway echoed no user note.
type PaymentEvent struct {
	Event     string
	PaymentID string
	OrderID   string
	Amount    int64
	Currency  string
	UserID    uint
	PlanID    *uint
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	EventID        string
	EventType      string
	PayloadJSON    string
	SignatureValid bool
}

// Checkout is the result of initiating a payment: the pending local
// transaction paired with the freshly created gateway order.
type Checkout struct {
	Transaction    *models.Transaction
	GatewayOrderID string
	Amount         int64
	Currency       string
	KeyID          string
}

// Outcomes of processing one payment event. Every outcome except a bad
// signature is acknowledged to the gateway.
const (
	OutcomeActivated     = "activated"
	OutcomeAuthorized    = "authorized"
	OutcomeFailed        = "failed"
	OutcomeReplay        = "replay"
	OutcomeDiscrepant    = "discrepant"
	OutcomeOrphanCreated = "orphan_created"
	OutcomeOrphanHeld    = "orphan_held"
	OutcomeHeldForReview = "held_for_review"
	OutcomeMissingUser   = "missing_user"
	OutcomeIgnored       = "ignored"
)

// ProcessResult reports what the reconciliation engine did with one event.
type ProcessResult struct {
	Outcome      string
	Transaction  *models.Transaction
	Subscription *models.Subscription
}
