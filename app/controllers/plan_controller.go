package controllers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/cache"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/catalog"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
)

const (
	activePlansCacheKey = "plans:active"
	activePlansCacheTTL = 5 * time.Minute
)

// HandleListPlans serves the public plan listing with computed discounts.
// The listing is cached in Redis; admin plan mutations invalidate it.
func HandleListPlans(c *fiber.Ctx) error {
	if cached, err := cache.Get(activePlansCacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	svc := catalog.NewServiceFromDB(database.GetDB())
	plans, err := svc.ListActivePlans()
	if err != nil {
		return mapServiceError(c, err)
	}

	body, err := json.Marshal(fiber.Map{"plans": plans})
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := cache.Set(activePlansCacheKey, string(body), activePlansCacheTTL); err != nil {
		log.Warnf("plan list cache write failed: %v", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// invalidatePlanCache drops the cached public listing after a mutation.
func invalidatePlanCache() {
	if err := cache.Delete(activePlansCacheKey); err != nil {
		log.Warnf("plan list cache invalidation failed: %v", err)
	}
}
