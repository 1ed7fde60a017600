package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

type fakeGateway struct {
	orders int
	err    error
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.orders++
	return &GatewayOrder{
		ID:       fmt.Sprintf("order_fake_%d", f.orders),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Plan{},
		&models.Transaction{},
		&models.Subscription{},
		&models.UserAccess{},
		&models.WebhookEvent{},
	)
	if err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, *fakeGateway) {
	t.Helper()
	gateway := &fakeGateway{}
	manager := subscription.NewManager(repository.NewRepositories(db), nil)
	return NewService(NewRepository(db), gateway, manager), gateway
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Name: "Asha Reader", Email: "asha@example.com", Password: "x", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedWeeklyPlan(t *testing.T, db *gorm.DB) *models.Plan {
	t.Helper()
	days := 7
	plan := &models.Plan{
		Name:             "Weekly",
		Slug:             "weekly",
		Currency:         "INR",
		FinalPriceAmount: 15000,
		BillingType:      models.BillingTypeDurationDays,
		DurationDays:     &days,
		ArchiveRule:      models.ArchiveRuleAttemptedOnly,
		IsActive:         true,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

func capturedEvent(orderID string, amount int64, userID uint, planID *uint) *PaymentEvent {
	return &PaymentEvent{
		Event:     EventPaymentCaptured,
		PaymentID: "pay_" + orderID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  "INR",
		UserID:    userID,
		PlanID:    planID,
	}
}

func TestCheckoutCreatesPendingTransaction(t *testing.T) {
	db := newTestDB(t)
	svc, gateway := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)

	out, err := svc.Checkout(context.Background(), user, plan)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if gateway.orders != 1 {
		t.Fatalf("expected one gateway order, got %d", gateway.orders)
	}
	if out.GatewayOrderID == "" {
		t.Fatalf("expected an order id")
	}
	if out.Amount != plan.FinalPriceAmount {
		t.Fatalf("expected amount %d, got %d", plan.FinalPriceAmount, out.Amount)
	}

	tx := out.Transaction
	if tx.Status != models.TransactionStatusCreated {
		t.Fatalf("expected status created, got %q", tx.Status)
	}
	if tx.UserID != user.ID || tx.PlanID == nil || *tx.PlanID != plan.ID {
		t.Fatalf("transaction not linked to user/plan: %+v", tx)
	}
	if tx.MetaMap()["receipt"] == "" {
		t.Fatalf("expected a receipt in metadata")
	}
}

func TestCheckoutRejectsInactivePlan(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)
	plan.IsActive = false

	if _, err := svc.Checkout(context.Background(), user, plan); err == nil {
		t.Fatalf("expected error for inactive plan")
	}
}

func TestCapturedPaymentActivatesOnce(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)

	out, err := svc.Checkout(context.Background(), user, plan)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	ev := capturedEvent(out.GatewayOrderID, plan.FinalPriceAmount, user.ID, &plan.ID)

	// The gateway retries deliveries; three identical events must yield
	// exactly one captured transaction and one subscription.
	first, err := svc.ProcessPaymentEvent(context.Background(), ev, []byte("{}"))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Outcome != OutcomeActivated {
		t.Fatalf("expected activated, got %q", first.Outcome)
	}
	if first.Subscription == nil {
		t.Fatalf("expected a subscription")
	}

	for i := 0; i < 2; i++ {
		res, err := svc.ProcessPaymentEvent(context.Background(), ev, []byte("{}"))
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if res.Outcome != OutcomeReplay {
			t.Fatalf("expected replay, got %q", res.Outcome)
		}
	}

	var txCount, subCount int64
	db.Model(&models.Transaction{}).Count(&txCount)
	db.Model(&models.Subscription{}).Count(&subCount)
	if txCount != 1 || subCount != 1 {
		t.Fatalf("expected 1 transaction and 1 subscription, got %d/%d", txCount, subCount)
	}

	// Weekly plan grants exactly seven days from activation.
	sub := first.Subscription
	if got := sub.EndDate.Sub(sub.StartDate); got != 7*24*time.Hour {
		t.Fatalf("expected a 7 day window, got %v", got)
	}

	ua, err := models.GetOrCreateUserAccess(db, user.ID)
	if err != nil {
		t.Fatalf("load access cache: %v", err)
	}
	if ua.PlanID == nil || *ua.PlanID != plan.ID {
		t.Fatalf("access cache not pointing at plan: %+v", ua)
	}
	if ua.IsExpired || ua.AccessExpiresAt == nil {
		t.Fatalf("access cache should carry a live window: %+v", ua)
	}
}

func TestDiscrepantCaptureIsHeld(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)

	out, err := svc.Checkout(context.Background(), user, plan)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	ev := capturedEvent(out.GatewayOrderID, plan.FinalPriceAmount-1, user.ID, &plan.ID)
	res, err := svc.ProcessPaymentEvent(context.Background(), ev, []byte("{}"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeDiscrepant {
		t.Fatalf("expected discrepant, got %q", res.Outcome)
	}
	if !res.Transaction.IsDiscrepant {
		t.Fatalf("expected discrepant flag on transaction")
	}
	if res.Transaction.Status != models.TransactionStatusCaptured {
		t.Fatalf("discrepant capture keeps captured status, got %q", res.Transaction.Status)
	}

	var subCount int64
	db.Model(&models.Subscription{}).Count(&subCount)
	if subCount != 0 {
		t.Fatalf("discrepant capture must not activate, got %d subscriptions", subCount)
	}
}

func TestOrphanPaymentIsHeldNotActivated(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)

	ev := capturedEvent("order_never_seen", plan.FinalPriceAmount, user.ID, &plan.ID)
	res, err := svc.ProcessPaymentEvent(context.Background(), ev, []byte(`{"raw":1}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeOrphanCreated {
		t.Fatalf("expected orphan_created, got %q", res.Outcome)
	}
	if !res.Transaction.IsOrphan {
		t.Fatalf("expected orphan flag on transaction")
	}
	if res.Transaction.RequestedAmount != 0 {
		t.Fatalf("orphan rows carry no requested amount, got %d", res.Transaction.RequestedAmount)
	}

	// A later delivery for the same unknown order stays held and records the
	// extra payment id for review.
	again := capturedEvent("order_never_seen", plan.FinalPriceAmount, user.ID, &plan.ID)
	again.PaymentID = "pay_retry"
	res2, err := svc.ProcessPaymentEvent(context.Background(), again, []byte(`{"raw":2}`))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if res2.Outcome != OutcomeOrphanHeld {
		t.Fatalf("expected orphan_held, got %q", res2.Outcome)
	}
	pending := res2.Transaction.MetaMap()["pending_payment_ids"]
	if pending != "pay_order_never_seen,pay_retry" {
		t.Fatalf("unexpected pending payment ids: %q", pending)
	}

	var subCount int64
	db.Model(&models.Subscription{}).Count(&subCount)
	if subCount != 0 {
		t.Fatalf("orphans must never activate, got %d subscriptions", subCount)
	}
}

func TestMissingUserNoteIsConsumedWithoutAction(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)

	ev := capturedEvent("order_no_user", 15000, 0, nil)
	res, err := svc.ProcessPaymentEvent(context.Background(), ev, []byte("{}"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeMissingUser {
		t.Fatalf("expected missing_user, got %q", res.Outcome)
	}

	var txCount int64
	db.Model(&models.Transaction{}).Count(&txCount)
	if txCount != 0 {
		t.Fatalf("expected no ledger writes, got %d", txCount)
	}
}

func TestFailedAndAuthorizedTransitions(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)

	out, err := svc.Checkout(context.Background(), user, plan)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	auth := capturedEvent(out.GatewayOrderID, plan.FinalPriceAmount, user.ID, &plan.ID)
	auth.Event = EventPaymentAuthorized
	res, err := svc.ProcessPaymentEvent(context.Background(), auth, []byte("{}"))
	if err != nil {
		t.Fatalf("authorized: %v", err)
	}
	if res.Outcome != OutcomeAuthorized || res.Transaction.Status != models.TransactionStatusAuthorized {
		t.Fatalf("unexpected authorized result: %q/%q", res.Outcome, res.Transaction.Status)
	}

	failed := capturedEvent(out.GatewayOrderID, plan.FinalPriceAmount, user.ID, &plan.ID)
	failed.Event = EventPaymentFailed
	res, err = svc.ProcessPaymentEvent(context.Background(), failed, []byte("{}"))
	if err != nil {
		t.Fatalf("failed: %v", err)
	}
	if res.Outcome != OutcomeFailed || res.Transaction.Status != models.TransactionStatusFailed {
		t.Fatalf("unexpected failed result: %q/%q", res.Outcome, res.Transaction.Status)
	}

	var subCount int64
	db.Model(&models.Subscription{}).Count(&subCount)
	if subCount != 0 {
		t.Fatalf("failed payments must not activate, got %d subscriptions", subCount)
	}
}

func TestCapturedWithUnknownPlanIsHeldForReview(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	user := seedUser(t, db)
	plan := seedWeeklyPlan(t, db)

	out, err := svc.Checkout(context.Background(), user, plan)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := db.Delete(&models.Plan{}, plan.ID).Error; err != nil {
		t.Fatalf("delete plan: %v", err)
	}

	ev := capturedEvent(out.GatewayOrderID, plan.FinalPriceAmount, user.ID, &plan.ID)
	res, err := svc.ProcessPaymentEvent(context.Background(), ev, []byte("{}"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeHeldForReview {
		t.Fatalf("expected held_for_review, got %q", res.Outcome)
	}
	if !res.Transaction.IsOrphan {
		t.Fatalf("held rows are flagged for review")
	}
	if res.Transaction.MetaMap()["held_reason"] != "plan_not_found" {
		t.Fatalf("unexpected held reason: %q", res.Transaction.MetaMap()["held_reason"])
	}
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestService(t, db)

	in := WebhookEventInput{
		EventID:        "evt_1",
		EventType:      EventPaymentCaptured,
		PayloadJSON:    `{"event":"payment.captured"}`,
		SignatureValid: true,
	}

	created, first, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !created {
		t.Fatalf("expected first delivery to create the event")
	}

	created, second, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate delivery to be deduplicated")
	}
	if first.ID != second.ID {
		t.Fatalf("expected the stored row both times, got %d and %d", first.ID, second.ID)
	}

	// Deliveries without an event id fall back to a payload hash.
	noID := WebhookEventInput{EventType: EventPaymentCaptured, PayloadJSON: `{"n":1}`}
	created, hashed, err := svc.RecordWebhookEvent(context.Background(), noID)
	if err != nil {
		t.Fatalf("record without id: %v", err)
	}
	if !created {
		t.Fatalf("expected hash-keyed event to be created")
	}
	created, _, err = svc.RecordWebhookEvent(context.Background(), noID)
	if err != nil {
		t.Fatalf("record without id again: %v", err)
	}
	if created {
		t.Fatalf("expected identical payload to deduplicate on its hash")
	}
	if err := svc.MarkWebhookProcessed(context.Background(), hashed.ID, nil); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
}
