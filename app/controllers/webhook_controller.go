package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/billing"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/env"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

// HandlePaymentWebhook ingests gateway payment notifications. Delivery is
// at-least-once and possibly out of order; every path acknowledges receipt
// except an invalid signature, so the gateway never retries into a broken
// loop while anomalies stay held for review.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Signature"))
	eventID := strings.TrimSpace(c.Get("X-Event-ID"))
	secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")

	// Authentication precedes any state change.
	if secret != "" && !billing.VerifyWebhookSignature(rawBody, signature, secret) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "webhook signature mismatch")
	}

	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	svc := billing.NewServiceFromDB(database.GetDB(), billing.NewGatewayClientFromEnv(), manager)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ev, parseErr := billing.ParsePaymentEvent(rawBody)
	eventType := ""
	if ev != nil {
		eventType = ev.Event
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		EventID:        eventID,
		EventType:      eventType,
		PayloadJSON:    string(rawBody),
		SignatureValid: secret != "",
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed", "could not persist webhook event")
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, parseErr)
		// Malformed financial payloads are acknowledged and kept for
		// forensics; retrying them would loop forever.
		log.Warnf("unparseable webhook payload acknowledged: %v", parseErr)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
	if !billing.IsPaymentEvent(ev.Event) {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	result, processErr := svc.ProcessPaymentEvent(ctx, ev, rawBody)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		// Internal anomaly: still acknowledge so the gateway does not storm
		// retries; the event row carries the error for replay.
		log.Errorf("payment event %s processing failed: %v", ev.PaymentID, processErr)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "held": true})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": result.Outcome})
}
