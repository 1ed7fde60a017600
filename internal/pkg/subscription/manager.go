// Package subscription turns finalized transactions into active
// subscriptions and keeps the per-user access cache in step. Status
// transitions only ever move forward (active -> expired/revoked), so the
// expiry sweep and webhook processing can race safely.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
)

var (
	// ErrNoActiveSubscription marks extensions without a grant to extend.
	// An extension never fabricates access from nothing.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrFreePlanProtected marks extend/revoke attempts against the free plan.
	ErrFreePlanProtected = errors.New("free plan cannot be extended or revoked")
)

// Manager owns subscription lifecycle and the user access cache.
type Manager struct {
	subs   repository.SubscriptionRepository
	plans  repository.PlanRepository
	txs    repository.TransactionRepository
	access repository.UserAccessRepository

	snapshots SnapshotStore
	now       func() time.Time
}

// NewManager creates a manager over the shared repositories. The snapshot
// store may be nil; the DB cache row is then the only mirror.
func NewManager(repos *repository.Repositories, snapshots SnapshotStore) *Manager {
	return &Manager{
		subs:      repos.Subscription,
		plans:     repos.Plan,
		txs:       repos.Transaction,
		access:    repos.UserAccess,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// NewManagerFromDB creates a manager from a GORM DB handle.
func NewManagerFromDB(db *gorm.DB, snapshots SnapshotStore) *Manager {
	return NewManager(repository.NewRepositories(db), snapshots)
}

// ActivateFromTransaction creates the subscription for a cleanly captured
// transaction. Idempotent per transaction: replays return the existing
// subscription. A renewal while access is still valid appends to the current
// window instead of overlapping it.
func (m *Manager) ActivateFromTransaction(ctx context.Context, tx *models.Transaction, plan *models.Plan) (*models.Subscription, error) {
	_ = ctx
	if tx == nil || tx.ID == 0 {
		return nil, errors.New("transaction is required")
	}
	if plan == nil || plan.ID == 0 {
		return nil, errors.New("plan is required")
	}

	if existing, err := m.subs.GetByTransactionID(tx.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := m.now()
	start := now
	ua, err := m.access.GetOrCreate(tx.UserID)
	if err != nil {
		return nil, err
	}
	if ua.HasValidWindow(now) {
		start = *ua.AccessExpiresAt
	}

	end, err := plan.AccessPeriod(start)
	if err != nil {
		return nil, err
	}

	txID := tx.ID
	sub := &models.Subscription{
		UserID:        tx.UserID,
		PlanID:        plan.ID,
		TransactionID: &txID,
		StartDate:     start,
		EndDate:       end,
		Status:        models.SubscriptionStatusActive,
	}
	if err := m.subs.Create(sub); err != nil {
		// The unique index on transaction_id is the backstop for concurrent
		// duplicate webhooks; the first writer wins.
		if existing, lookupErr := m.subs.GetByTransactionID(tx.ID); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}

	if err := m.refreshAccess(ua, &plan.ID, &start, &end, false); err != nil {
		return nil, err
	}

	// Trace linkage back into the ledger.
	tx.SetMeta("subscription_id", strconv.FormatUint(uint64(sub.ID), 10))
	if err := m.txs.Update(tx); err != nil {
		log.Errorf("subscription %d created but ledger backlink failed: %v", sub.ID, err)
	}

	return sub, nil
}

// Assign manually grants a subscription, typically to resolve a held orphan
// or discrepant payment. When a transaction id is given the grant stays
// idempotent per transaction like the automatic path.
func (m *Manager) Assign(ctx context.Context, userID, planID uint, transactionID *uint, startAt *time.Time) (*models.Subscription, error) {
	_ = ctx
	plan, err := m.plans.GetByID(planID)
	if err != nil {
		return nil, err
	}

	if transactionID != nil {
		if existing, err := m.subs.GetByTransactionID(*transactionID); err == nil {
			return existing, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	now := m.now()
	start := now
	ua, err := m.access.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	if startAt != nil {
		start = *startAt
	} else if ua.HasValidWindow(now) {
		start = *ua.AccessExpiresAt
	}

	end, err := plan.AccessPeriod(start)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:        userID,
		PlanID:        plan.ID,
		TransactionID: transactionID,
		StartDate:     start,
		EndDate:       end,
		Status:        models.SubscriptionStatusActive,
	}
	if err := m.subs.Create(sub); err != nil {
		if transactionID != nil {
			if existing, lookupErr := m.subs.GetByTransactionID(*transactionID); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if err := m.refreshAccess(ua, &plan.ID, &start, &end, false); err != nil {
		return nil, err
	}
	return sub, nil
}

// Extend lengthens the user's current active subscription by the given
// number of days. Fails when there is nothing active to extend or the
// active plan is the free plan.
func (m *Manager) Extend(ctx context.Context, userID uint, days int) (*models.Subscription, error) {
	_ = ctx
	if days <= 0 {
		return nil, fmt.Errorf("extension days must be positive, got %d", days)
	}

	actives, err := m.subs.ListActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(actives) == 0 {
		return nil, ErrNoActiveSubscription
	}

	latest := &actives[0]
	plan, err := m.plans.GetByID(latest.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, ErrFreePlanProtected
	}

	latest.EndDate = latest.EndDate.AddDate(0, 0, days)
	if err := m.subs.Update(latest); err != nil {
		return nil, err
	}

	ua, err := m.access.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	if err := m.refreshAccess(ua, &latest.PlanID, &latest.StartDate, &latest.EndDate, false); err != nil {
		return nil, err
	}
	return latest, nil
}

// Revoke marks every active subscription for the user revoked, ends access
// now and clears the cached plan pointer. Revoking a user with no active
// subscription is a no-op success that still clears the cache. The free
// plan can never be revoked.
func (m *Manager) Revoke(ctx context.Context, userID uint) error {
	_ = ctx
	actives, err := m.subs.ListActiveByUser(userID)
	if err != nil {
		return err
	}

	for i := range actives {
		plan, err := m.plans.GetByID(actives[i].PlanID)
		if err != nil {
			return err
		}
		if plan.IsFree() {
			return ErrFreePlanProtected
		}
	}

	now := m.now()
	for i := range actives {
		actives[i].Status = models.SubscriptionStatusRevoked
		actives[i].EndDate = now
		if err := m.subs.Update(&actives[i]); err != nil {
			return err
		}
	}

	ua, err := m.access.GetOrCreate(userID)
	if err != nil {
		return err
	}
	return m.refreshAccess(ua, nil, nil, nil, true)
}

// refreshAccess rewrites the denormalized cache row and mirrors it into the
// snapshot store. The row is derived state; the subscription ledger stays
// the source of truth.
func (m *Manager) refreshAccess(ua *models.UserAccess, planID *uint, start, end *time.Time, expired bool) error {
	ua.PlanID = planID
	ua.AccessStartedAt = start
	ua.AccessExpiresAt = end
	ua.IsExpired = expired
	if err := m.access.Save(ua); err != nil {
		return err
	}
	if m.snapshots != nil {
		if expired || planID == nil {
			m.snapshots.Drop(ua.UserID)
		} else {
			m.snapshots.Put(ua)
		}
	}
	return nil
}
