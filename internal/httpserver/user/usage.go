package user

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
	usagesvc "github.com/ncecere/spendwatch/internal/services/usage"
)

type manualUsageRequest struct {
	ProviderID string `json:"provider_id"`
	usagesvc.ManualEntry
}

func (h *userHandler) registerUsageRoutes(router fiber.Router) {
	router.Get("/usage", h.usageReport)
	router.Get("/usage/export", h.usageExport)
	router.Post("/usage/manual", h.recordManualUsage)
	router.Get("/dashboard", h.dashboard)
}

func (h *userHandler) usageReport(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	providerID, err := parseOptionalUUID(c.Query("provider_id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid provider_id")
	}
	report, err := h.usage.Summary(userContext(c), user, c.Query("period"), providerID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(report)
}

func (h *userHandler) usageExport(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	providerID, err := parseOptionalUUID(c.Query("provider_id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid provider_id")
	}
	period := c.Query("period", usagesvc.PeriodMonth)

	var buf bytes.Buffer
	if err := h.usage.ExportCSV(userContext(c), user, period, providerID, &buf); err != nil {
		return writeServiceError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "usage-"+period+".csv"))
	return c.Send(buf.Bytes())
}

func (h *userHandler) recordManualUsage(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req manualUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Provider ID required")
	}
	entry, err := h.usage.RecordManual(userContext(c), user, providerID, req.ManualEntry)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *userHandler) dashboard(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	dash, err := h.usage.Dashboard(userContext(c), user)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(dash)
}
