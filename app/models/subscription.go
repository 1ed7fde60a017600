package models

import "time"

const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
	SubscriptionStatusRevoked = "revoked"
	SubscriptionStatusPending = "pending"
)

// Subscription grants a user time-bounded access under a plan. At most one
// subscription exists per transaction; the unique index on transaction_id is
// the backstop for concurrent duplicate webhooks. TransactionID is null for
// grants assigned manually by an admin.
//
// Status only ever moves forward (active -> expired/revoked), so the expiry
// sweep and webhook processing may race safely.
type Subscription struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	PlanID        uint      `gorm:"not null;index" json:"plan_id"`
	TransactionID *uint     `gorm:"uniqueIndex;default:null" json:"transaction_id,omitempty"`
	StartDate     time.Time `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate       time.Time `gorm:"type:timestamp;not null;index" json:"end_date"`
	Status        string    `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCurrent reports whether the subscription grants access at the given time.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !now.Before(s.StartDate) && now.Before(s.EndDate)
}
