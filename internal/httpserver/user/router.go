package user

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/app"
)

// Register wires the auth endpoints and the session-protected dashboard API.
func Register(app *fiber.App, container *app.Container) {
	if app == nil || container == nil {
		return
	}

	registerAuthRoutes(app.Group("/api/auth"), container)

	handler := &userHandler{
		container:   container,
		credentials: container.Credentials,
		syncer:      container.Syncer,
		usage:       container.Usage,
		alerts:      container.Alerts,
		billing:     container.Billing,
	}

	group := app.Group("/api", sessionMiddleware(container))
	group.Get("/me", handler.me)
	group.Post("/sync", handler.sync)
	handler.registerProviderRoutes(group)
	handler.registerUsageRoutes(group)
	handler.registerAlertRoutes(group)
	handler.registerBillingRoutes(group)
}
