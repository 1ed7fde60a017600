package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/billing"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

type checkoutRequest struct {
	PlanID uint `json:"plan_id"`
}

// HandleCheckout initiates a payment: one gateway order paired with one
// pending ledger row. The authenticated user id arrives via X-User-ID from
// the upstream session layer.
func HandleCheckout(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "missing user identity")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil || req.PlanID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "plan_id is required")
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	user, err := repos.User.GetByID(userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	plan, err := repos.Plan.GetByID(req.PlanID)
	if err != nil {
		return mapServiceError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	svc := billing.NewServiceFromDB(database.GetDB(), billing.NewGatewayClientFromEnv(), manager)

	checkout, err := svc.Checkout(ctx, user, plan)
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "checkout_failed", err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction_id": checkout.Transaction.ID,
		"order_id":       checkout.GatewayOrderID,
		"amount":         checkout.Amount,
		"currency":       checkout.Currency,
		"key_id":         checkout.KeyID,
	})
}

// currentUserID reads the identity the upstream auth layer attached.
func currentUserID(c *fiber.Ctx) uint {
	raw := strings.TrimSpace(c.Get("X-User-ID"))
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}
