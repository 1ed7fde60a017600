package subscription

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
)

const sweepBatchSize = 500

// SweepResult counts what one expiry sweep pass touched.
type SweepResult struct {
	SubscriptionsExpired int
	CachesFlagged        int
	DriftRepaired        int
}

// SweepExpired expires lapsed active subscriptions and flags the matching
// cache rows. Idempotent and safe to run concurrently with webhook
// processing: both only move status forward, so the last forward transition
// wins. History is never deleted.
func (m *Manager) SweepExpired(ctx context.Context) (*SweepResult, error) {
	_ = ctx
	now := m.now()
	result := &SweepResult{}

	due, err := m.subs.ListActiveEndedBefore(now, sweepBatchSize)
	if err != nil {
		return nil, err
	}
	for i := range due {
		sub := &due[i]
		sub.Status = models.SubscriptionStatusExpired
		if err := m.subs.Update(sub); err != nil {
			return result, err
		}
		result.SubscriptionsExpired++

		ua, err := m.access.GetOrCreate(sub.UserID)
		if err != nil {
			return result, err
		}
		// Only flag the cache when it still points at this grant's window;
		// a newer subscription may already have refreshed it.
		if !ua.IsExpired && ua.AccessExpiresAt != nil && !ua.AccessExpiresAt.After(sub.EndDate) {
			ua.IsExpired = true
			if err := m.access.Save(ua); err != nil {
				return result, err
			}
			if m.snapshots != nil {
				m.snapshots.Drop(ua.UserID)
			}
			result.CachesFlagged++
		}
	}

	// Drift repair: cache rows whose window lapsed without the flag being
	// set, e.g. when a sweep died between the two writes.
	stale, err := m.access.ListExpiredUnflagged(now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	for i := range stale {
		ua := &stale[i]
		ua.IsExpired = true
		if err := m.access.Save(ua); err != nil {
			return result, err
		}
		if m.snapshots != nil {
			m.snapshots.Drop(ua.UserID)
		}
		result.DriftRepaired++
	}

	return result, nil
}

// RunExpirySweeper runs SweepExpired on a ticker until the context ends.
func (m *Manager) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := m.SweepExpired(ctx)
			if err != nil {
				log.Errorf("expiry sweep failed: %v", err)
				continue
			}
			if result.SubscriptionsExpired > 0 || result.DriftRepaired > 0 {
				log.Infof("expiry sweep: expired=%d caches_flagged=%d drift_repaired=%d",
					result.SubscriptionsExpired, result.CachesFlagged, result.DriftRepaired)
			}
		}
	}
}
