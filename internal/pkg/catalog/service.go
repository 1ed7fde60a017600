// Package catalog owns the purchasable plan catalog: validation, versioned
// updates and the public listing with computed discounts. The reserved free
// plan is protected from every destructive or billing-field mutation.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
)

var (
	// ErrValidation marks malformed plan specs. Wrapped with detail.
	ErrValidation = errors.New("plan validation failed")
	// ErrFreePlanProtected marks attempts to mutate or delete the reserved
	// free plan's protected fields.
	ErrFreePlanProtected = errors.New("free plan is protected")
)

// Service provides plan catalog operations.
type Service struct {
	repo     repository.PlanRepository
	validate *validator.Validate
}

// NewService creates a catalog service from an injected repository.
func NewService(repo repository.PlanRepository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// NewServiceFromDB creates a catalog service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(repository.NewPlanRepository(db))
}

// PlanSpec is the input for creating a plan.
type PlanSpec struct {
	Name              string     `json:"name" validate:"required,min=2,max=150"`
	Slug              string     `json:"slug" validate:"required"`
	Description       string     `json:"description"`
	Currency          string     `json:"currency" validate:"required,len=3"`
	FinalPriceAmount  int64      `json:"final_price_amount" validate:"min=0"`
	MarkupAmount      *int64     `json:"markup_amount,omitempty"`
	BillingType       string     `json:"billing_type" validate:"oneof=duration_days till_date"`
	DurationDays      *int       `json:"duration_days,omitempty"`
	AccessUntil       *time.Time `json:"access_until,omitempty"`
	ArchiveRule       string     `json:"archive_rule" validate:"omitempty,oneof=attempted_only window all"`
	ArchiveWindowDays *int       `json:"archive_window_days,omitempty"`
	FeedbackLocked    bool       `json:"feedback_locked"`
	FeedbackLockScope string     `json:"feedback_lock_scope"`
	DailyTestLimit    *int       `json:"daily_test_limit,omitempty"`
}

// PlanPatch is the partial input for updating a plan. Nil fields are left
// untouched.
type PlanPatch struct {
	Name              *string    `json:"name,omitempty"`
	Slug              *string    `json:"slug,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Currency          *string    `json:"currency,omitempty"`
	FinalPriceAmount  *int64     `json:"final_price_amount,omitempty"`
	MarkupAmount      *int64     `json:"markup_amount,omitempty"`
	BillingType       *string    `json:"billing_type,omitempty"`
	DurationDays      *int       `json:"duration_days,omitempty"`
	AccessUntil       *time.Time `json:"access_until,omitempty"`
	ArchiveRule       *string    `json:"archive_rule,omitempty"`
	ArchiveWindowDays *int       `json:"archive_window_days,omitempty"`
	FeedbackLocked    *bool      `json:"feedback_locked,omitempty"`
	FeedbackLockScope *string    `json:"feedback_lock_scope,omitempty"`
	DailyTestLimit    *int       `json:"daily_test_limit,omitempty"`
	IsActive          *bool      `json:"is_active,omitempty"`
}

// PlanView is a plan as served on the public listing.
type PlanView struct {
	models.Plan
	DiscountPercent int `json:"discount_percent"`
}

// ListActivePlans returns active plans sorted by price with computed
// discount percentages.
func (s *Service) ListActivePlans() ([]PlanView, error) {
	plans, err := s.repo.GetActive()
	if err != nil {
		return nil, err
	}
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, PlanView{Plan: p, DiscountPercent: p.DiscountPercent()})
	}
	return views, nil
}

// CreatePlan validates and persists a new plan at version 1.
func (s *Service) CreatePlan(spec PlanSpec) (*models.Plan, error) {
	spec.Slug = strings.ToLower(strings.TrimSpace(spec.Slug))
	if spec.ArchiveRule == "" {
		spec.ArchiveRule = models.ArchiveRuleAttemptedOnly
	}
	if err := s.validateSpec(&spec); err != nil {
		return nil, err
	}

	taken, err := s.repo.SlugExists(spec.Slug)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: slug %q already exists", ErrValidation, spec.Slug)
	}

	plan := &models.Plan{
		Name:              spec.Name,
		Slug:              spec.Slug,
		Description:       spec.Description,
		Currency:          strings.ToUpper(spec.Currency),
		FinalPriceAmount:  spec.FinalPriceAmount,
		MarkupAmount:      spec.MarkupAmount,
		BillingType:       spec.BillingType,
		DurationDays:      spec.DurationDays,
		AccessUntil:       spec.AccessUntil,
		ArchiveRule:       spec.ArchiveRule,
		ArchiveWindowDays: spec.ArchiveWindowDays,
		FeedbackLocked:    spec.FeedbackLocked,
		FeedbackLockScope: spec.FeedbackLockScope,
		DailyTestLimit:    spec.DailyTestLimit,
		IsActive:          true,
		Version:           1,
	}
	if err := s.repo.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan applies a patch, re-validates the result and bumps the version.
// Billing fields of the free plan are immutable.
func (s *Service) UpdatePlan(id uint, patch PlanPatch) (*models.Plan, error) {
	plan, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if patch.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*patch.Slug))
		if slug == models.FreePlanSlug {
			return nil, fmt.Errorf("%w: slug %q is reserved", ErrValidation, models.FreePlanSlug)
		}
		if plan.IsFree() && slug != plan.Slug {
			return nil, fmt.Errorf("%w: slug is immutable", ErrFreePlanProtected)
		}
		if slug != plan.Slug {
			taken, err := s.repo.SlugExistsExceptID(slug, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("%w: slug %q already exists", ErrValidation, slug)
			}
		}
		plan.Slug = slug
	}

	if plan.IsFree() && patchesBillingFields(patch) {
		return nil, fmt.Errorf("%w: billing fields are immutable", ErrFreePlanProtected)
	}

	applyPatch(plan, patch)

	spec := specFromPlan(plan)
	if err := s.validateSpec(&spec); err != nil {
		return nil, err
	}

	plan.Version++
	if err := s.repo.Update(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// DeactivatePlan hides a plan from the public listing. Existing
// subscriptions keep their terms. The free plan cannot be deactivated.
func (s *Service) DeactivatePlan(id uint) (*models.Plan, error) {
	plan, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, fmt.Errorf("%w: cannot deactivate", ErrFreePlanProtected)
	}
	if !plan.IsActive {
		return plan, nil
	}
	plan.IsActive = false
	plan.Version++
	if err := s.repo.Update(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// DeletePlan removes a plan. The free plan can never be deleted.
func (s *Service) DeletePlan(id uint) error {
	plan, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if plan.IsFree() {
		return fmt.Errorf("%w: cannot delete", ErrFreePlanProtected)
	}
	return s.repo.Delete(id)
}

func (s *Service) validateSpec(spec *PlanSpec) error {
	if err := s.validate.Struct(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	// The free slug is pre-seeded; specFromPlan round-trips it on updates.
	if spec.Slug != models.FreePlanSlug && !models.ValidSlug(spec.Slug) {
		return fmt.Errorf("%w: invalid slug %q", ErrValidation, spec.Slug)
	}
	if spec.MarkupAmount != nil && *spec.MarkupAmount < spec.FinalPriceAmount {
		return fmt.Errorf("%w: markup amount below final price", ErrValidation)
	}
	switch spec.BillingType {
	case models.BillingTypeDurationDays:
		if spec.DurationDays == nil || *spec.DurationDays < 0 {
			return fmt.Errorf("%w: duration_days billing requires duration_days", ErrValidation)
		}
	case models.BillingTypeTillDate:
		if spec.AccessUntil == nil {
			return fmt.Errorf("%w: till_date billing requires access_until", ErrValidation)
		}
	}
	if spec.ArchiveRule == models.ArchiveRuleWindow {
		if spec.ArchiveWindowDays == nil || *spec.ArchiveWindowDays < 0 {
			return fmt.Errorf("%w: window archive rule requires archive_window_days", ErrValidation)
		}
	}
	return nil
}

func patchesBillingFields(patch PlanPatch) bool {
	return patch.Currency != nil ||
		patch.FinalPriceAmount != nil ||
		patch.MarkupAmount != nil ||
		patch.BillingType != nil ||
		patch.DurationDays != nil ||
		patch.AccessUntil != nil
}

func applyPatch(plan *models.Plan, patch PlanPatch) {
	if patch.Name != nil {
		plan.Name = *patch.Name
	}
	if patch.Description != nil {
		plan.Description = *patch.Description
	}
	if patch.Currency != nil {
		plan.Currency = strings.ToUpper(*patch.Currency)
	}
	if patch.FinalPriceAmount != nil {
		plan.FinalPriceAmount = *patch.FinalPriceAmount
	}
	if patch.MarkupAmount != nil {
		plan.MarkupAmount = patch.MarkupAmount
	}
	if patch.BillingType != nil {
		plan.BillingType = *patch.BillingType
	}
	if patch.DurationDays != nil {
		plan.DurationDays = patch.DurationDays
	}
	if patch.AccessUntil != nil {
		plan.AccessUntil = patch.AccessUntil
	}
	if patch.ArchiveRule != nil {
		plan.ArchiveRule = *patch.ArchiveRule
	}
	if patch.ArchiveWindowDays != nil {
		plan.ArchiveWindowDays = patch.ArchiveWindowDays
	}
	if patch.FeedbackLocked != nil {
		plan.FeedbackLocked = *patch.FeedbackLocked
	}
	if patch.FeedbackLockScope != nil {
		plan.FeedbackLockScope = *patch.FeedbackLockScope
	}
	if patch.DailyTestLimit != nil {
		plan.DailyTestLimit = patch.DailyTestLimit
	}
	if patch.IsActive != nil {
		plan.IsActive = *patch.IsActive
	}
}

func specFromPlan(plan *models.Plan) PlanSpec {
	return PlanSpec{
		Name:              plan.Name,
		Slug:              plan.Slug,
		Description:       plan.Description,
		Currency:          plan.Currency,
		FinalPriceAmount:  plan.FinalPriceAmount,
		MarkupAmount:      plan.MarkupAmount,
		BillingType:       plan.BillingType,
		DurationDays:      plan.DurationDays,
		AccessUntil:       plan.AccessUntil,
		ArchiveRule:       plan.ArchiveRule,
		ArchiveWindowDays: plan.ArchiveWindowDays,
		FeedbackLocked:    plan.FeedbackLocked,
		FeedbackLockScope: plan.FeedbackLockScope,
		DailyTestLimit:    plan.DailyTestLimit,
	}
}
