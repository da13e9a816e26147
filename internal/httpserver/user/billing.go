package user

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
)

func (h *userHandler) registerBillingRoutes(router fiber.Router) {
	router.Post("/stripe/checkout", h.createCheckout)
	router.Get("/billing", h.billingStatus)
}

func (h *userHandler) createCheckout(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	checkout, err := h.billing.CreateCheckout(userContext(c), user)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(checkout)
}

func (h *userHandler) billingStatus(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	return c.JSON(h.billing.Status(userContext(c), user))
}
