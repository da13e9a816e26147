package user

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
)

type createProviderRequest struct {
	ProviderName string `json:"provider_name"`
	APIKey       string `json:"api_key"`
}

type updateProviderRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *userHandler) registerProviderRoutes(router fiber.Router) {
	router.Get("/providers", h.listProviders)
	router.Post("/providers", h.createProvider)
	router.Delete("/providers", h.deleteProvider)
	router.Delete("/providers/:id", h.deleteProvider)
	router.Patch("/providers/:id", h.updateProvider)
}

func (h *userHandler) listProviders(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	items, err := h.credentials.List(userContext(c), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"providers": items})
}

func (h *userHandler) createProvider(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req createProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	provider, err := h.credentials.Create(userContext(c), user, req.ProviderName, req.APIKey)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"provider": provider})
}

func (h *userHandler) updateProvider(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "provider not found")
	}
	var req updateProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.IsActive == nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "is_active is required")
	}
	provider, err := h.credentials.SetActive(userContext(c), user, id, *req.IsActive)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"provider": provider})
}

// deleteProvider accepts the id as a path segment or an ?id= query value.
func (h *userHandler) deleteProvider(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	raw := strings.TrimSpace(c.Params("id"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("id"))
	}
	if raw == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Provider ID required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "provider not found")
	}
	if err := h.credentials.Delete(userContext(c), userID, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
