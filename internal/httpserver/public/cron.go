package public

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
	syncsvc "github.com/ncecere/spendwatch/internal/services/syncer"
)

type allSyncer interface {
	SyncAll(ctx context.Context) ([]syncsvc.Result, error)
}

type cronHandler struct {
	syncer allSyncer
}

func (h *cronHandler) syncAll(c *fiber.Ctx) error {
	results, err := h.syncer.SyncAll(c.UserContext())
	if err != nil {
		slog.ErrorContext(c.UserContext(), "cron sync failed", "error", err)
		return httputil.WriteError(c, fiber.StatusInternalServerError, "Cron sync failed")
	}
	if results == nil {
		results = []syncsvc.Result{}
	}
	return c.JSON(fiber.Map{
		"success":          true,
		"providers_synced": len(results),
		"results":          results,
	})
}
