package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// UserAccess is the denormalized per-user copy of the current plan and expiry
// window. It is a read optimization only: every access decision that matters
// is derived from Plan + Subscription, and this row must always be
// re-derivable from the latest non-revoked subscription.
//
// It is refreshed synchronously on every subscription mutation and
// asynchronously by the expiry sweep.
type UserAccess struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID          *uint      `gorm:"index;default:null" json:"plan_id,omitempty"`
	AccessStartedAt *time.Time `gorm:"type:timestamp;default:null" json:"access_started_at,omitempty"`
	AccessExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"access_expires_at,omitempty"`
	IsExpired       bool       `gorm:"default:false;index" json:"is_expired"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasValidWindow reports whether the cached window covers the given time.
func (ua *UserAccess) HasValidWindow(now time.Time) bool {
	return !ua.IsExpired && ua.AccessExpiresAt != nil && now.Before(*ua.AccessExpiresAt)
}

// GetOrCreateUserAccess loads the cache row for a user, creating an empty one
// on first touch.
func GetOrCreateUserAccess(db *gorm.DB, userID uint) (*UserAccess, error) {
	var ua UserAccess
	err := db.Where("user_id = ?", userID).First(&ua).Error
	if err == nil {
		return &ua, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ua = UserAccess{UserID: userID}
	if err := db.Create(&ua).Error; err != nil {
		// Lost a concurrent create; re-read the winner.
		var existing UserAccess
		if ferr := db.Where("user_id = ?", userID).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &ua, nil
}
