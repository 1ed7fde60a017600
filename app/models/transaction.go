package models

import (
	"encoding/json"
	"time"
)

const (
	TransactionStatusCreated    = "created"
	TransactionStatusAuthorized = "authorized"
	TransactionStatusCaptured   = "captured"
	TransactionStatusFailed     = "failed"
)

// Transaction records one payment attempt against the external gateway. The
// gateway order id is the idempotency key: exactly one row per order. Rows
// are append-mostly; only the reconciliation path mutates them and nothing
// ever deletes them.
//
// Orphan and discrepant are distinct flags rather than statuses so sweeps
// never mistake a held record for a merely slow one.
type Transaction struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	UserID           uint    `gorm:"not null;index" json:"user_id"`
	PlanID           *uint   `gorm:"index;default:null" json:"plan_id,omitempty"`
	RequestedAmount  int64   `gorm:"not null" json:"requested_amount"`
	PaidAmount       *int64  `gorm:"default:null" json:"paid_amount,omitempty"`
	Currency         string  `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	GatewayOrderID   string  `gorm:"type:varchar(191);not null;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID *string `gorm:"type:varchar(191);default:null;index" json:"gateway_payment_id,omitempty"`
	Status           string  `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	IsDiscrepant     bool    `gorm:"default:false;index" json:"is_discrepant"`
	IsOrphan         bool    `gorm:"default:false;index" json:"is_orphan"`
	RawPayload       string  `gorm:"type:longtext" json:"raw_payload"`
	Metadata         string  `gorm:"type:longtext" json:"metadata"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetaMap decodes the free-form metadata column. A missing or corrupt column
// yields an empty map; metadata is advisory, never load-bearing.
func (t *Transaction) MetaMap() map[string]string {
	out := map[string]string{}
	if t.Metadata == "" {
		return out
	}
	_ = json.Unmarshal([]byte(t.Metadata), &out)
	return out
}

// SetMeta writes a key into the metadata column, preserving existing keys.
func (t *Transaction) SetMeta(key, value string) {
	m := t.MetaMap()
	m[key] = value
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	t.Metadata = string(raw)
}

// AppendMeta appends a value to a comma-separated metadata key. Used to
// accumulate payment ids against held orphan rows for manual review.
func (t *Transaction) AppendMeta(key, value string) {
	m := t.MetaMap()
	if existing, ok := m[key]; ok && existing != "" {
		value = existing + "," + value
	}
	t.SetMeta(key, value)
}
