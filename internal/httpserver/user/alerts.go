package user

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
	alertsvc "github.com/ncecere/spendwatch/internal/services/alerts"
)

type createAlertRequest struct {
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	ThresholdAmount *decimal.Decimal `json:"threshold_amount"`
	ProviderID      string           `json:"provider_id"`
	Status          string           `json:"status"`
}

type updateAlertRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *userHandler) registerAlertRoutes(router fiber.Router) {
	router.Get("/alerts", h.listAlerts)
	router.Post("/alerts", h.createAlert)
	router.Put("/alerts", h.updateAlert)
	router.Delete("/alerts", h.deleteAlert)
}

func (h *userHandler) listAlerts(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	items, err := h.alerts.List(userContext(c), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"alerts": items})
}

func (h *userHandler) createAlert(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req createAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.ThresholdAmount == nil {
		return writeServiceError(c, alertsvc.ErrMissingFields)
	}
	providerID, err := parseOptionalUUID(req.ProviderID)
	if err != nil {
		return writeServiceError(c, alertsvc.ErrUnknownProvider)
	}

	alert, err := h.alerts.Create(userContext(c), userID, alertsvc.CreateInput{
		Name:            req.Name,
		Type:            req.Type,
		ThresholdAmount: *req.ThresholdAmount,
		ProviderID:      providerID,
		Status:          req.Status,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"alert": alert})
}

func (h *userHandler) updateAlert(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req updateAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ID) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Alert ID required")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ID))
	if err != nil {
		return writeServiceError(c, alertsvc.ErrNotFound)
	}
	alert, err := h.alerts.UpdateStatus(userContext(c), userID, id, req.Status)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"alert": alert})
}

func (h *userHandler) deleteAlert(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	raw := strings.TrimSpace(c.Query("id"))
	if raw == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Alert ID required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return writeServiceError(c, alertsvc.ErrNotFound)
	}
	if err := h.alerts.Delete(userContext(c), userID, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
