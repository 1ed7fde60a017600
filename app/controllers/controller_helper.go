package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/catalog"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

// jsonError writes the standard error envelope.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// mapServiceError translates service-layer errors to HTTP responses:
// validation -> 400, policy violations -> 422, unknown rows -> 404.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, catalog.ErrFreePlanProtected),
		errors.Is(err, subscription.ErrFreePlanProtected),
		errors.Is(err, subscription.ErrNoActiveSubscription):
		return jsonError(c, fiber.StatusUnprocessableEntity, "policy_violation", err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", "record not found")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", err.Error())
	}
}

// paramUint parses a numeric route parameter.
func paramUint(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

// queryTime parses an optional RFC3339 or date-only query parameter.
func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.New("invalid " + name + ", want RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &v, nil
}
