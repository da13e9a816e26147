package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/app"
)

// Register wires endpoints called by machines rather than signed-in users.
func Register(app *fiber.App, container *app.Container) {
	if app == nil || container == nil {
		return
	}
	cron := &cronHandler{syncer: container.Syncer}
	app.Get("/api/cron/sync", cronAuth(container), cron.syncAll)

	hooks := &stripeHandler{billing: container.Billing}
	app.Post("/api/stripe/webhook", hooks.webhook)
}
