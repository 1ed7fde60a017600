package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/catalog"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
)

// HandleAdminPlanCreate creates a new purchasable plan.
func HandleAdminPlanCreate(c *fiber.Ctx) error {
	var spec catalog.PlanSpec
	if err := c.BodyParser(&spec); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid plan spec")
	}

	svc := catalog.NewServiceFromDB(database.GetDB())
	plan, err := svc.CreatePlan(spec)
	if err != nil {
		return mapServiceError(c, err)
	}

	invalidatePlanCache()
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandleAdminPlanUpdate patches a plan and bumps its version.
func HandleAdminPlanUpdate(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var patch catalog.PlanPatch
	if err := c.BodyParser(&patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid plan patch")
	}

	svc := catalog.NewServiceFromDB(database.GetDB())
	plan, err := svc.UpdatePlan(id, patch)
	if err != nil {
		return mapServiceError(c, err)
	}

	invalidatePlanCache()
	return c.Status(fiber.StatusOK).JSON(plan)
}

// HandleAdminPlanDeactivate hides a plan from the public listing.
func HandleAdminPlanDeactivate(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	svc := catalog.NewServiceFromDB(database.GetDB())
	plan, err := svc.DeactivatePlan(id)
	if err != nil {
		return mapServiceError(c, err)
	}

	invalidatePlanCache()
	return c.Status(fiber.StatusOK).JSON(plan)
}

// HandleAdminPlanDelete removes a plan. The free plan is protected.
func HandleAdminPlanDelete(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	svc := catalog.NewServiceFromDB(database.GetDB())
	if err := svc.DeletePlan(id); err != nil {
		return mapServiceError(c, err)
	}

	invalidatePlanCache()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
