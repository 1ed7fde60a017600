package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

type assignRequest struct {
	UserID        uint       `json:"user_id"`
	PlanID        uint       `json:"plan_id"`
	TransactionID *uint      `json:"transaction_id,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
}

type extendRequest struct {
	Days int `json:"days"`
}

// HandleAdminSubscriptionAssign manually grants a subscription, the escape
// hatch for held orphan or discrepant payments.
func HandleAdminSubscriptionAssign(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 || req.PlanID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "user_id and plan_id are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	sub, err := manager.Assign(ctx, req.UserID, req.PlanID, req.TransactionID, req.StartDate)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleAdminSubscriptionExtend lengthens a user's active subscription.
func HandleAdminSubscriptionExtend(c *fiber.Ctx) error {
	userID, err := paramUint(c, "userId")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var req extendRequest
	if err := c.BodyParser(&req); err != nil || req.Days <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "days must be a positive integer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	sub, err := manager.Extend(ctx, userID, req.Days)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(sub)
}

// HandleAdminSubscriptionRevoke revokes all active subscriptions for a user
// and clears the cached plan pointer.
func HandleAdminSubscriptionRevoke(c *fiber.Ctx) error {
	userID, err := paramUint(c, "userId")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	if err := manager.Revoke(ctx, userID); err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
