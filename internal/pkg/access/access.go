// Package access answers "can this user see this resource" from Plan and
// Subscription state. It never consults the denormalized user access cache;
// that cache is a read optimization for hot paths, not an authority.
package access

import (
	"time"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
)

// Rule is the archive-access rule resolved from a plan.
type Rule struct {
	Kind       string
	WindowDays int
}

// Decision is an allow/deny outcome with a machine-readable reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Decision reasons.
const (
	ReasonScheduledToday = "scheduled_today"
	ReasonAttempted      = "attempted"
	ReasonWithinWindow   = "within_window"
	ReasonPlanAllowsAll  = "plan_allows_all"
	ReasonNotAttempted   = "not_attempted"
	ReasonOutsideWindow  = "outside_window"
	ReasonUnknownRule    = "unknown_archive_rule"
)

// RuleForPlan resolves the archive rule for a plan. A user without a plan
// gets attempted-only access; there is no other implicit default.
func RuleForPlan(plan *models.Plan) Rule {
	if plan == nil {
		return Rule{Kind: models.ArchiveRuleAttemptedOnly}
	}
	switch plan.ArchiveRule {
	case models.ArchiveRuleWindow:
		days := 0
		if plan.ArchiveWindowDays != nil {
			days = *plan.ArchiveWindowDays
		}
		return Rule{Kind: models.ArchiveRuleWindow, WindowDays: days}
	case models.ArchiveRuleAll:
		return Rule{Kind: models.ArchiveRuleAll}
	default:
		return Rule{Kind: models.ArchiveRuleAttemptedOnly}
	}
}

// Request carries everything needed for one access decision.
type Request struct {
	Plan         *models.Plan
	Subscription *models.Subscription
	ResourceDate time.Time
	Attempted    bool
	Now          time.Time
}

// CanAccess applies the plan's archive rule to a dated resource. Resources
// scheduled for today are always visible regardless of plan.
func CanAccess(req Request) Decision {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	if sameDay(req.ResourceDate, now) {
		return Decision{Allowed: true, Reason: ReasonScheduledToday}
	}

	rule := RuleForPlan(req.Plan)
	switch rule.Kind {
	case models.ArchiveRuleAll:
		return Decision{Allowed: true, Reason: ReasonPlanAllowsAll}
	case models.ArchiveRuleAttemptedOnly:
		if req.Attempted {
			return Decision{Allowed: true, Reason: ReasonAttempted}
		}
		return Decision{Allowed: false, Reason: ReasonNotAttempted}
	case models.ArchiveRuleWindow:
		if req.Attempted {
			return Decision{Allowed: true, Reason: ReasonAttempted}
		}
		if req.Subscription != nil && withinWindow(req.Subscription.StartDate, req.ResourceDate, rule.WindowDays) {
			return Decision{Allowed: true, Reason: ReasonWithinWindow}
		}
		return Decision{Allowed: false, Reason: ReasonOutsideWindow}
	default:
		return Decision{Allowed: false, Reason: ReasonUnknownRule}
	}
}

// withinWindow checks the resource date against [start, start+days] at day
// granularity, inclusive on both ends.
func withinWindow(start, resource time.Time, days int) bool {
	s := truncateDay(start)
	r := truncateDay(resource)
	if r.Before(s) {
		return false
	}
	return !r.After(s.AddDate(0, 0, days))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
