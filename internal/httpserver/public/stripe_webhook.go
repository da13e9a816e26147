package public

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
	billingsvc "github.com/ncecere/spendwatch/internal/services/billing"
)

type stripeHandler struct {
	billing *billingsvc.Service
}

func (h *stripeHandler) webhook(c *fiber.Ctx) error {
	// Body must stay byte-for-byte intact for signature verification.
	payload := append([]byte(nil), c.Body()...)
	err := h.billing.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true})
	case errors.Is(err, billingsvc.ErrMissingSignature):
		return httputil.WriteError(c, fiber.StatusBadRequest, "Missing signature")
	case errors.Is(err, billingsvc.ErrInvalidSignature):
		return httputil.WriteError(c, fiber.StatusBadRequest, "Invalid signature")
	case errors.Is(err, billingsvc.ErrNotConfigured):
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		slog.ErrorContext(c.UserContext(), "stripe webhook failed", "error", err)
		return httputil.WriteError(c, fiber.StatusInternalServerError, "Webhook handler failed")
	}
}
