package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Plan{},
		&models.Transaction{},
		&models.Subscription{},
		&models.UserAccess{},
	))
	return db
}

func newTestManager(t *testing.T, db *gorm.DB, now time.Time) *Manager {
	t.Helper()
	m := NewManager(repository.NewRepositories(db), nil)
	m.now = func() time.Time { return now }
	return m
}

func seedPlan(t *testing.T, db *gorm.DB, slug string, days int) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:             slug,
		Slug:             slug,
		Currency:         "INR",
		FinalPriceAmount: 10000,
		BillingType:      models.BillingTypeDurationDays,
		DurationDays:     &days,
		ArchiveRule:      models.ArchiveRuleAttemptedOnly,
		IsActive:         true,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func seedCapturedTransaction(t *testing.T, db *gorm.DB, userID, planID uint, orderID string) *models.Transaction {
	t.Helper()
	paid := int64(10000)
	tx := &models.Transaction{
		UserID:          userID,
		PlanID:          &planID,
		RequestedAmount: 10000,
		PaidAmount:      &paid,
		Currency:        "INR",
		GatewayOrderID:  orderID,
		Status:          models.TransactionStatusCaptured,
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func TestActivateFromTransactionIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	plan := seedPlan(t, db, "monthly", 30)
	tx := seedCapturedTransaction(t, db, 1, plan.ID, "order_1")

	first, err := m.ActivateFromTransaction(context.Background(), tx, plan)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, first.Status)
	assert.Equal(t, now, first.StartDate)
	assert.Equal(t, now.AddDate(0, 0, 30), first.EndDate)

	second, err := m.ActivateFromTransaction(context.Background(), tx, plan)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.Subscription{}).Count(&count)
	assert.EqualValues(t, 1, count)

	// Activation backlinks the subscription into the ledger row.
	var stored models.Transaction
	require.NoError(t, db.First(&stored, tx.ID).Error)
	assert.NotEmpty(t, stored.MetaMap()["subscription_id"])
}

func TestActivateRenewalAppendsToCurrentWindow(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	plan := seedPlan(t, db, "monthly", 30)

	tx1 := seedCapturedTransaction(t, db, 1, plan.ID, "order_1")
	first, err := m.ActivateFromTransaction(context.Background(), tx1, plan)
	require.NoError(t, err)

	// Renewing mid-window starts the new grant where the current one ends.
	tx2 := seedCapturedTransaction(t, db, 1, plan.ID, "order_2")
	second, err := m.ActivateFromTransaction(context.Background(), tx2, plan)
	require.NoError(t, err)
	assert.WithinDuration(t, first.EndDate, second.StartDate, time.Second)
	assert.WithinDuration(t, first.EndDate.AddDate(0, 0, 30), second.EndDate, time.Second)

	ua, err := models.GetOrCreateUserAccess(db, 1)
	require.NoError(t, err)
	require.NotNil(t, ua.AccessExpiresAt)
	assert.WithinDuration(t, second.EndDate, *ua.AccessExpiresAt, time.Second)
}

func TestAssignGrantsManually(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	plan := seedPlan(t, db, "monthly", 30)

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	sub, err := m.Assign(context.Background(), 9, plan.ID, nil, &start)
	require.NoError(t, err)
	assert.Nil(t, sub.TransactionID)
	assert.Equal(t, start, sub.StartDate)
	assert.Equal(t, start.AddDate(0, 0, 30), sub.EndDate)

	// Assigning against a transaction already holding a grant returns it.
	tx := seedCapturedTransaction(t, db, 9, plan.ID, "order_held")
	granted, err := m.Assign(context.Background(), 9, plan.ID, &tx.ID, nil)
	require.NoError(t, err)
	again, err := m.Assign(context.Background(), 9, plan.ID, &tx.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, granted.ID, again.ID)
}

func TestExtendRequiresActiveSubscription(t *testing.T) {
	db := newTestDB(t)
	m := newTestManager(t, db, time.Now())

	_, err := m.Extend(context.Background(), 42, 7)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)

	_, err = m.Extend(context.Background(), 42, 0)
	assert.Error(t, err)
}

func TestExtendLengthensLatestGrant(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	plan := seedPlan(t, db, "monthly", 30)
	tx := seedCapturedTransaction(t, db, 1, plan.ID, "order_1")

	sub, err := m.ActivateFromTransaction(context.Background(), tx, plan)
	require.NoError(t, err)

	extended, err := m.Extend(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, sub.EndDate.AddDate(0, 0, 5), extended.EndDate)

	ua, err := models.GetOrCreateUserAccess(db, 1)
	require.NoError(t, err)
	require.NotNil(t, ua.AccessExpiresAt)
	assert.WithinDuration(t, extended.EndDate, *ua.AccessExpiresAt, time.Second)
}

func TestExtendRejectsFreePlan(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	require.NoError(t, models.EnsureFreePlan(db))

	var free models.Plan
	require.NoError(t, db.Where("slug = ?", models.FreePlanSlug).First(&free).Error)
	require.NoError(t, db.Create(&models.Subscription{
		UserID:    1,
		PlanID:    free.ID,
		StartDate: now,
		EndDate:   now.AddDate(1, 0, 0),
		Status:    models.SubscriptionStatusActive,
	}).Error)

	_, err := m.Extend(context.Background(), 1, 7)
	assert.ErrorIs(t, err, ErrFreePlanProtected)
}

func TestRevokeEndsAccessNow(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	plan := seedPlan(t, db, "monthly", 30)
	tx := seedCapturedTransaction(t, db, 1, plan.ID, "order_1")

	sub, err := m.ActivateFromTransaction(context.Background(), tx, plan)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), 1))

	var stored models.Subscription
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusRevoked, stored.Status)
	assert.WithinDuration(t, now, stored.EndDate, time.Second)

	ua, err := models.GetOrCreateUserAccess(db, 1)
	require.NoError(t, err)
	assert.Nil(t, ua.PlanID)
	assert.True(t, ua.IsExpired)
}

func TestRevokeWithoutActiveIsNoOp(t *testing.T) {
	db := newTestDB(t)
	m := newTestManager(t, db, time.Now())
	require.NoError(t, m.Revoke(context.Background(), 77))
}

func TestRevokeRejectsFreePlan(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)
	require.NoError(t, models.EnsureFreePlan(db))

	var free models.Plan
	require.NoError(t, db.Where("slug = ?", models.FreePlanSlug).First(&free).Error)
	require.NoError(t, db.Create(&models.Subscription{
		UserID:    1,
		PlanID:    free.ID,
		StartDate: now,
		EndDate:   now.AddDate(1, 0, 0),
		Status:    models.SubscriptionStatusActive,
	}).Error)

	assert.ErrorIs(t, m.Revoke(context.Background(), 1), ErrFreePlanProtected)
}

func TestSweepExpiredMovesStatusForward(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, start)
	plan := seedPlan(t, db, "weekly", 7)
	tx := seedCapturedTransaction(t, db, 1, plan.ID, "order_1")

	sub, err := m.ActivateFromTransaction(context.Background(), tx, plan)
	require.NoError(t, err)

	// Nothing lapsed yet.
	result, err := m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.SubscriptionsExpired)

	m.now = func() time.Time { return start.AddDate(0, 0, 8) }
	result, err = m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubscriptionsExpired)
	assert.Equal(t, 1, result.CachesFlagged)

	var stored models.Subscription
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusExpired, stored.Status)

	ua, err := models.GetOrCreateUserAccess(db, 1)
	require.NoError(t, err)
	assert.True(t, ua.IsExpired)

	// A second pass finds nothing; the sweep is idempotent.
	result, err = m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.SubscriptionsExpired)
}

func TestSweepRepairsCacheDrift(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	m := newTestManager(t, db, now)

	// A cache row whose window lapsed without the expiry flag, e.g. a sweep
	// that died between its two writes.
	lapsed := now.AddDate(0, 0, -3)
	planID := uint(1)
	require.NoError(t, db.Create(&models.UserAccess{
		UserID:          5,
		PlanID:          &planID,
		AccessStartedAt: &lapsed,
		AccessExpiresAt: &lapsed,
		IsExpired:       false,
	}).Error)

	result, err := m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DriftRepaired)

	ua, err := models.GetOrCreateUserAccess(db, 5)
	require.NoError(t, err)
	assert.True(t, ua.IsExpired)
}
