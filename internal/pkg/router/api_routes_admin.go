package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/controllers"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/middleware"
)

func (h ApiRouter) registerAdminRoutes(v1 fiber.Router) {
	adminGroup := v1.Group("/admin", middleware.RequireAdmin)

	// Plan catalog management
	adminGroup.Post("/plans", controllers.HandleAdminPlanCreate)
	adminGroup.Patch("/plans/:id", controllers.HandleAdminPlanUpdate)
	adminGroup.Post("/plans/:id/deactivate", controllers.HandleAdminPlanDeactivate)
	adminGroup.Delete("/plans/:id", controllers.HandleAdminPlanDelete)

	// Manual reconciliation
	adminGroup.Post("/subscriptions/assign", controllers.HandleAdminSubscriptionAssign)
	adminGroup.Patch("/subscriptions/:userId/extend", controllers.HandleAdminSubscriptionExtend)
	adminGroup.Patch("/subscriptions/:userId/revoke", controllers.HandleAdminSubscriptionRevoke)
	adminGroup.Get("/transactions", controllers.HandleAdminTransactionList)

	// Maintenance
	adminGroup.Post("/sweep/expiry", controllers.HandleAdminExpirySweep)
}
