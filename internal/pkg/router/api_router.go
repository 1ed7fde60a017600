package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// Gateway webhooks bypass the public rate limiter; throttling financial
	// notifications would only trigger gateway retry storms.
	app.Post("/webhooks/payments", controllers.HandlePaymentWebhook)

	api := app.Group("/api", limiter.New())
	v1 := api.Group("/v1")

	v1.Get("/plans", controllers.HandleListPlans)
	v1.Post("/checkout", controllers.HandleCheckout)
	v1.Get("/access/check", controllers.HandleAccessCheck)

	h.registerAdminRoutes(v1)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
