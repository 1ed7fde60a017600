package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestRuleForPlanNoPlanIsAttemptedOnly(t *testing.T) {
	rule := RuleForPlan(nil)
	assert.Equal(t, models.ArchiveRuleAttemptedOnly, rule.Kind)
}

func TestRuleForPlanWindow(t *testing.T) {
	days := 7
	plan := &models.Plan{ArchiveRule: models.ArchiveRuleWindow, ArchiveWindowDays: &days}
	rule := RuleForPlan(plan)
	assert.Equal(t, models.ArchiveRuleWindow, rule.Kind)
	assert.Equal(t, 7, rule.WindowDays)
}

func TestCanAccessTodayCarveOut(t *testing.T) {
	now := day(2025, 3, 10)
	dec := CanAccess(Request{
		Plan:         nil,
		ResourceDate: day(2025, 3, 10),
		Attempted:    false,
		Now:          now,
	})
	assert.True(t, dec.Allowed)
	assert.Equal(t, ReasonScheduledToday, dec.Reason)
}

func TestCanAccessAttemptedOnly(t *testing.T) {
	now := day(2025, 3, 10)
	resource := day(2025, 3, 1)

	dec := CanAccess(Request{ResourceDate: resource, Attempted: true, Now: now})
	assert.True(t, dec.Allowed)
	assert.Equal(t, ReasonAttempted, dec.Reason)

	dec = CanAccess(Request{ResourceDate: resource, Attempted: false, Now: now})
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonNotAttempted, dec.Reason)
}

func TestCanAccessWindowBoundaries(t *testing.T) {
	days := 7
	plan := &models.Plan{ArchiveRule: models.ArchiveRuleWindow, ArchiveWindowDays: &days}
	sub := &models.Subscription{
		StartDate: day(2025, 3, 1),
		EndDate:   day(2025, 6, 1),
		Status:    models.SubscriptionStatusActive,
	}
	now := day(2025, 4, 20)

	tests := []struct {
		name     string
		resource time.Time
		want     bool
		reason   string
	}{
		{name: "start day", resource: day(2025, 3, 1), want: true, reason: ReasonWithinWindow},
		{name: "start plus seven", resource: day(2025, 3, 8), want: true, reason: ReasonWithinWindow},
		{name: "start plus eight", resource: day(2025, 3, 9), want: false, reason: ReasonOutsideWindow},
		{name: "before start", resource: day(2025, 2, 27), want: false, reason: ReasonOutsideWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := CanAccess(Request{
				Plan:         plan,
				Subscription: sub,
				ResourceDate: tt.resource,
				Attempted:    false,
				Now:          now,
			})
			assert.Equal(t, tt.want, dec.Allowed)
			assert.Equal(t, tt.reason, dec.Reason)
		})
	}
}

func TestCanAccessWindowAttemptedWins(t *testing.T) {
	days := 7
	plan := &models.Plan{ArchiveRule: models.ArchiveRuleWindow, ArchiveWindowDays: &days}
	dec := CanAccess(Request{
		Plan:         plan,
		ResourceDate: day(2025, 1, 1),
		Attempted:    true,
		Now:          day(2025, 4, 20),
	})
	assert.True(t, dec.Allowed)
	assert.Equal(t, ReasonAttempted, dec.Reason)
}

func TestCanAccessAllPlan(t *testing.T) {
	plan := &models.Plan{ArchiveRule: models.ArchiveRuleAll}
	dec := CanAccess(Request{
		Plan:         plan,
		ResourceDate: day(2024, 1, 1),
		Attempted:    false,
		Now:          day(2025, 4, 20),
	})
	assert.True(t, dec.Allowed)
	assert.Equal(t, ReasonPlanAllowsAll, dec.Reason)
}
