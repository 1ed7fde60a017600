package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// FreePlanSlug is reserved. The free plan is seeded once and its billing
	// fields are immutable; it can never be deleted or revoked.
	FreePlanSlug = "free"

	BillingTypeDurationDays = "duration_days"
	BillingTypeTillDate     = "till_date"
)

const (
	ArchiveRuleAttemptedOnly = "attempted_only"
	ArchiveRuleWindow        = "window"
	ArchiveRuleAll           = "all"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,49}$`)

// ErrUnknownBillingType is returned when a plan carries a billing type the
// code does not know how to compute an access period for. There is
// deliberately no silent default.
var ErrUnknownBillingType = errors.New("unknown billing type")

// Plan is a purchasable access plan. Prices are stored in the smallest
// currency unit. MarkupAmount is display-only (strikethrough price).
type Plan struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Slug             string     `gorm:"type:varchar(50);not null;uniqueIndex" json:"slug" validate:"required"`
	Description      string     `gorm:"type:text" json:"description"`
	Currency         string     `gorm:"type:varchar(3);not null;default:'INR'" json:"currency" validate:"required,len=3"`
	FinalPriceAmount int64      `gorm:"not null" json:"final_price_amount" validate:"min=0"`
	MarkupAmount     *int64     `gorm:"default:null" json:"markup_amount,omitempty"`
	BillingType      string     `gorm:"type:varchar(20);not null" json:"billing_type" validate:"oneof=duration_days till_date"`
	DurationDays     *int       `gorm:"default:null" json:"duration_days,omitempty"`
	AccessUntil      *time.Time `gorm:"type:timestamp;default:null" json:"access_until,omitempty"`

	ArchiveRule       string `gorm:"type:varchar(20);not null;default:'attempted_only'" json:"archive_rule" validate:"oneof=attempted_only window all"`
	ArchiveWindowDays *int   `gorm:"default:null" json:"archive_window_days,omitempty"`
	FeedbackLocked    bool   `gorm:"default:false" json:"feedback_locked"`
	FeedbackLockScope string `gorm:"type:varchar(50);default:''" json:"feedback_lock_scope"`
	DailyTestLimit    *int   `gorm:"default:null" json:"daily_test_limit,omitempty"`

	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFree reports whether this is the reserved free plan.
func (p *Plan) IsFree() bool {
	return p.Slug == FreePlanSlug
}

// DiscountPercent computes the displayed discount from the markup price.
// Returns 0 when no markup is set or the markup is not above the final price.
func (p *Plan) DiscountPercent() int {
	if p.MarkupAmount == nil || *p.MarkupAmount <= 0 || *p.MarkupAmount <= p.FinalPriceAmount {
		return 0
	}
	return int(((*p.MarkupAmount - p.FinalPriceAmount) * 100) / *p.MarkupAmount)
}

// AccessPeriod computes the subscription end date for an access period
// beginning at start. TillDate plans are clamped so the end never precedes
// the start.
func (p *Plan) AccessPeriod(start time.Time) (time.Time, error) {
	switch p.BillingType {
	case BillingTypeDurationDays:
		if p.DurationDays == nil {
			return time.Time{}, fmt.Errorf("plan %s: duration_days billing without duration", p.Slug)
		}
		return start.AddDate(0, 0, *p.DurationDays), nil
	case BillingTypeTillDate:
		if p.AccessUntil == nil {
			return time.Time{}, fmt.Errorf("plan %s: till_date billing without access_until", p.Slug)
		}
		if p.AccessUntil.Before(start) {
			return start, nil
		}
		return *p.AccessUntil, nil
	default:
		return time.Time{}, fmt.Errorf("plan %s: %w: %q", p.Slug, ErrUnknownBillingType, p.BillingType)
	}
}

// ValidSlug reports whether s is an acceptable plan slug for user-created
// plans (lowercase alphanumeric plus hyphen, 2-50 chars, not the reserved
// free slug).
func ValidSlug(s string) bool {
	return s != FreePlanSlug && slugPattern.MatchString(s)
}

// EnsureFreePlan seeds the reserved free plan if it does not exist yet.
func EnsureFreePlan(db *gorm.DB) error {
	days := 0
	free := &Plan{
		Name:             "Free",
		Slug:             FreePlanSlug,
		Currency:         "INR",
		FinalPriceAmount: 0,
		BillingType:      BillingTypeDurationDays,
		DurationDays:     &days,
		ArchiveRule:      ArchiveRuleAttemptedOnly,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(free).Error
}
