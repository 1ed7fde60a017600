package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/access"
)

// HandleAccessCheck resolves whether the current user may open an archived
// resource. Decisions come from Plan + Subscription state, never from the
// denormalized cache row.
func HandleAccessCheck(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "missing user identity")
	}

	rawDate := c.Query("resource_date")
	resourceDate, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "resource_date must be YYYY-MM-DD")
	}
	attempted, _ := strconv.ParseBool(c.Query("attempted", "false"))

	repos := repository.GetGlobalFactory().GetRepositories()

	// The explicit plan pointer is the only plan source; no plan means
	// attempted-only access.
	var plan *models.Plan
	var sub *models.Subscription
	ua, err := repos.UserAccess.GetOrCreate(userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	if ua.PlanID != nil {
		plan, err = repos.Plan.GetByID(*ua.PlanID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return mapServiceError(c, err)
		}
		actives, err := repos.Subscription.ListActiveByUser(userID)
		if err != nil {
			return mapServiceError(c, err)
		}
		if len(actives) > 0 {
			sub = &actives[0]
		}
	}

	decision := access.CanAccess(access.Request{
		Plan:         plan,
		Subscription: sub,
		ResourceDate: resourceDate,
		Attempted:    attempted,
		Now:          time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(decision)
}
