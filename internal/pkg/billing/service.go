// Package billing is the payment reconciliation core: checkout order
// creation, webhook-driven confirmation, duplicate and orphan handling, and
// discrepancy quarantine. Money is never silently lost or double counted;
// every anomaly lands in a held state an admin can resolve.
package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
)

// Transaction metadata keys written by the engine.
const (
	metaOrphan            = "orphan"
	metaHeldReason        = "held_reason"
	metaPendingPaymentIDs = "pending_payment_ids"
	metaSubscriptionID    = "subscription_id"
	metaReceipt           = "receipt"
)

// Activator turns a cleanly captured transaction into an active
// subscription. Implemented by the subscription manager.
type Activator interface {
	ActivateFromTransaction(ctx context.Context, tx *models.Transaction, plan *models.Plan) (*models.Subscription, error)
}

// Service is the reconciliation engine.
type Service struct {
	repo      Repository
	gateway   OrderCreator
	activator Activator
}

// NewService creates a reconciliation engine from injected collaborators.
func NewService(repo Repository, gateway OrderCreator, activator Activator) *Service {
	return &Service{repo: repo, gateway: gateway, activator: activator}
}

// NewServiceFromDB creates a reconciliation engine from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway OrderCreator, activator Activator) *Service {
	return NewService(NewRepository(db), gateway, activator)
}

// Checkout atomically pairs a gateway order with a local pending
// transaction. If the local write fails after the remote order succeeded,
// the order is reported lost-locally: the eventual webhook will recreate it
// as an orphan and hold it for review instead of dropping the money.
func (s *Service) Checkout(ctx context.Context, user *models.User, plan *models.Plan) (*Checkout, error) {
	if user == nil || user.ID == 0 {
		return nil, errors.New("user is required")
	}
	if plan == nil || plan.ID == 0 {
		return nil, errors.New("plan is required")
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("plan %s is not purchasable", plan.Slug)
	}

	receipt := "rcp_" + uuid.NewString()
	notes := map[string]string{
		"user_id": strconv.FormatUint(uint64(user.ID), 10),
		"plan_id": strconv.FormatUint(uint64(plan.ID), 10),
	}

	order, err := s.gateway.CreateOrder(ctx, plan.FinalPriceAmount, plan.Currency, receipt, notes)
	if err != nil {
		return nil, fmt.Errorf("gateway order create: %w", err)
	}

	planID := plan.ID
	tx := &models.Transaction{
		UserID:          user.ID,
		PlanID:          &planID,
		RequestedAmount: plan.FinalPriceAmount,
		Currency:        plan.Currency,
		GatewayOrderID:  order.ID,
		Status:          models.TransactionStatusCreated,
	}
	tx.SetMeta(metaReceipt, receipt)

	if err := s.repo.CreateTransaction(tx); err != nil {
		// The remote order exists but the local row does not. The webhook
		// path recreates it as an orphan, so the payment is held, not lost.
		log.Errorf("checkout: local transaction write failed for order %s: %v", order.ID, err)
		return nil, fmt.Errorf("transaction write for order %s: %w", order.ID, err)
	}

	var keyID string
	if gc, ok := s.gateway.(*GatewayClient); ok {
		keyID = gc.KeyID
	}
	return &Checkout{
		Transaction:    tx,
		GatewayOrderID: order.ID,
		Amount:         plan.FinalPriceAmount,
		Currency:       plan.Currency,
		KeyID:          keyID,
	}, nil
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without an event id are deduplicated on a payload hash.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		EventID:        eventID,
		EventType:      strings.TrimSpace(in.EventType),
		PayloadJSON:    in.PayloadJSON,
		SignatureValid: in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ProcessPaymentEvent runs the per-event state machine. Every return with a
// nil error must be acknowledged to the gateway; anomalies are held, never
// resolved in the user's favor.
func (s *Service) ProcessPaymentEvent(ctx context.Context, ev *PaymentEvent, rawPayload []byte) (*ProcessResult, error) {
	if ev == nil {
		return nil, errors.New("payment event is required")
	}

	if ev.UserID == 0 {
		log.Warnf("payment event %s for order %s carries no user note, consuming without action", ev.PaymentID, ev.OrderID)
		return &ProcessResult{Outcome: OutcomeMissingUser}, nil
	}

	tx, err := s.repo.GetTransactionByOrderID(ev.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.holdOrphan(ev, rawPayload)
		}
		return nil, err
	}

	// Replays of an already finalized order are no-ops.
	if tx.Status == models.TransactionStatusCaptured {
		return &ProcessResult{Outcome: OutcomeReplay, Transaction: tx}, nil
	}

	// Held orphan rows stay held; new payment ids accumulate for review.
	if tx.IsOrphan {
		tx.AppendMeta(metaPendingPaymentIDs, ev.PaymentID)
		tx.RawPayload = string(rawPayload)
		if err := s.repo.SaveTransaction(tx); err != nil {
			return nil, err
		}
		return &ProcessResult{Outcome: OutcomeOrphanHeld, Transaction: tx}, nil
	}

	paymentID := ev.PaymentID
	tx.GatewayPaymentID = &paymentID
	tx.RawPayload = string(rawPayload)

	switch ev.Event {
	case EventPaymentFailed:
		tx.Status = models.TransactionStatusFailed
		if err := s.repo.SaveTransaction(tx); err != nil {
			return nil, err
		}
		return &ProcessResult{Outcome: OutcomeFailed, Transaction: tx}, nil

	case EventPaymentAuthorized:
		tx.Status = models.TransactionStatusAuthorized
		if err := s.repo.SaveTransaction(tx); err != nil {
			return nil, err
		}
		return &ProcessResult{Outcome: OutcomeAuthorized, Transaction: tx}, nil

	case EventPaymentCaptured:
		return s.finalizeCapture(ctx, tx, ev)

	default:
		return &ProcessResult{Outcome: OutcomeIgnored, Transaction: tx}, nil
	}
}

// finalizeCapture marks the transaction captured and either quarantines it
// or hands off to subscription activation.
func (s *Service) finalizeCapture(ctx context.Context, tx *models.Transaction, ev *PaymentEvent) (*ProcessResult, error) {
	paid := ev.Amount
	tx.PaidAmount = &paid
	tx.Status = models.TransactionStatusCaptured

	// Exact inequality, no tolerance. Changing this would silently alter
	// financial semantics.
	if paid != tx.RequestedAmount {
		tx.IsDiscrepant = true
		if err := s.repo.SaveTransaction(tx); err != nil {
			return nil, err
		}
		log.Warnf("discrepant capture on order %s: paid=%d requested=%d, holding for review",
			tx.GatewayOrderID, paid, tx.RequestedAmount)
		return &ProcessResult{Outcome: OutcomeDiscrepant, Transaction: tx}, nil
	}

	if tx.PlanID == nil {
		return s.holdForReview(tx, "missing_plan_ref")
	}
	plan, err := s.repo.GetPlanByID(*tx.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.holdForReview(tx, "plan_not_found")
		}
		return nil, err
	}

	if err := s.repo.SaveTransaction(tx); err != nil {
		return nil, err
	}

	sub, err := s.activator.ActivateFromTransaction(ctx, tx, plan)
	if err != nil {
		return nil, fmt.Errorf("subscription activation for order %s: %w", tx.GatewayOrderID, err)
	}
	return &ProcessResult{Outcome: OutcomeActivated, Transaction: tx, Subscription: sub}, nil
}

// holdOrphan records a payment that matches no locally known order. The row
// is created held; a subscription is never synthesized from an orphan.
func (s *Service) holdOrphan(ev *PaymentEvent, rawPayload []byte) (*ProcessResult, error) {
	orphan := &models.Transaction{
		UserID:          ev.UserID,
		PlanID:          ev.PlanID,
		RequestedAmount: 0,
		Currency:        ev.Currency,
		GatewayOrderID:  ev.OrderID,
		Status:          models.TransactionStatusCreated,
		IsOrphan:        true,
		RawPayload:      string(rawPayload),
	}
	orphan.SetMeta(metaOrphan, "true")
	orphan.AppendMeta(metaPendingPaymentIDs, ev.PaymentID)

	created, stored, err := s.repo.CreateTransactionIfNotExists(orphan)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a race against checkout or another delivery; the stored row
		// wins and this payment id is appended for review.
		stored.AppendMeta(metaPendingPaymentIDs, ev.PaymentID)
		if err := s.repo.SaveTransaction(stored); err != nil {
			return nil, err
		}
		return &ProcessResult{Outcome: OutcomeOrphanHeld, Transaction: stored}, nil
	}

	log.Warnf("orphan payment %s for unknown order %s held for review (user %d)", ev.PaymentID, ev.OrderID, ev.UserID)
	return &ProcessResult{Outcome: OutcomeOrphanCreated, Transaction: stored}, nil
}

// holdForReview quarantines a captured payment whose plan linkage cannot be
// resolved. Degrades to orphan-style holding rather than failing the
// delivery.
func (s *Service) holdForReview(tx *models.Transaction, reason string) (*ProcessResult, error) {
	tx.IsOrphan = true
	tx.SetMeta(metaHeldReason, reason)
	if tx.GatewayPaymentID != nil {
		tx.AppendMeta(metaPendingPaymentIDs, *tx.GatewayPaymentID)
	}
	if err := s.repo.SaveTransaction(tx); err != nil {
		return nil, err
	}
	log.Warnf("captured payment on order %s held for review: %s", tx.GatewayOrderID, reason)
	return &ProcessResult{Outcome: OutcomeHeldForReview, Transaction: tx}, nil
}
