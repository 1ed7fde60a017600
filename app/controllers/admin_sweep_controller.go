package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

// HandleAdminExpirySweep runs one on-demand expiry sweep pass.
func HandleAdminExpirySweep(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	result, err := manager.SweepExpired(ctx)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"subscriptions_expired": result.SubscriptionsExpired,
		"caches_flagged":        result.CachesFlagged,
		"drift_repaired":        result.DriftRepaired,
	})
}
