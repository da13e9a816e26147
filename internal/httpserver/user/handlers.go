package user

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/app"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
	alertsvc "github.com/ncecere/spendwatch/internal/services/alerts"
	billingsvc "github.com/ncecere/spendwatch/internal/services/billing"
	credentialsvc "github.com/ncecere/spendwatch/internal/services/credentials"
	syncsvc "github.com/ncecere/spendwatch/internal/services/syncer"
	usagesvc "github.com/ncecere/spendwatch/internal/services/usage"
)

type userHandler struct {
	container   *app.Container
	credentials *credentialsvc.Service
	syncer      *syncsvc.Service
	usage       *usagesvc.Service
	alerts      *alertsvc.Service
	billing     *billingsvc.Service
}

type userResponse struct {
	ID               uuid.UUID     `json:"id"`
	Email            string        `json:"email"`
	Name             string        `json:"name"`
	SubscriptionTier accounts.Tier `json:"subscription_tier"`
	Plan             accounts.Plan `json:"plan"`
	CreatedAt        time.Time     `json:"created_at"`
}

type syncRequest struct {
	ProviderID string `json:"provider_id"`
}

func toUserResponse(u db.User, plans accounts.Catalog) userResponse {
	tier := accounts.ParseTier(u.SubscriptionTier)
	return userResponse{
		ID:               db.FromUUID(u.ID),
		Email:            u.Email,
		Name:             u.Name,
		SubscriptionTier: tier,
		Plan:             plans.For(string(tier)),
		CreatedAt:        timeFromPg(u.CreatedAt),
	}
}

func (h *userHandler) me(c *fiber.Ctx) error {
	user, ok := userFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	return c.JSON(toUserResponse(user, h.container.Plans))
}

func (h *userHandler) sync(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ProviderID) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Provider ID required")
	}
	providerID, err := uuid.Parse(strings.TrimSpace(req.ProviderID))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "Provider not found")
	}

	records, err := h.syncer.SyncProvider(userContext(c), userID, providerID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"records_synced": records,
	})
}
