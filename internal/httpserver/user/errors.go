package user

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/auth"
	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
	"github.com/ncecere/spendwatch/internal/limits"
	"github.com/ncecere/spendwatch/internal/providers"
	alertsvc "github.com/ncecere/spendwatch/internal/services/alerts"
	billingsvc "github.com/ncecere/spendwatch/internal/services/billing"
	credentialsvc "github.com/ncecere/spendwatch/internal/services/credentials"
	syncsvc "github.com/ncecere/spendwatch/internal/services/syncer"
	usagesvc "github.com/ncecere/spendwatch/internal/services/usage"
)

// writeServiceError maps service errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a 500 without internals.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, credentialsvc.ErrInvalidInput),
		errors.Is(err, credentialsvc.ErrKeyRejected),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		alertsvc.IsValidation(err),
		usagesvc.IsValidation(err):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidState):
		return httputil.WriteError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, credentialsvc.ErrProviderLimit),
		errors.Is(err, auth.ErrSignupDisabled):
		return httputil.WriteError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, credentialsvc.ErrNotFound),
		errors.Is(err, syncsvc.ErrNotFound),
		errors.Is(err, alertsvc.ErrNotFound),
		errors.Is(err, alertsvc.ErrUnknownProvider),
		errors.Is(err, usagesvc.ErrProviderNotFound),
		errors.Is(err, auth.ErrLocalDisabled),
		errors.Is(err, auth.ErrOIDCDisabled):
		return httputil.WriteError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, syncsvc.ErrSyncInProgress),
		errors.Is(err, auth.ErrEmailTaken):
		return httputil.WriteError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, syncsvc.ErrRateLimited),
		errors.Is(err, limits.ErrLimitExceeded):
		return httputil.WriteError(c, fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, providers.ErrUnauthorized):
		return httputil.WriteError(c, fiber.StatusBadRequest, credentialsvc.ErrKeyRejected.Error())
	case errors.Is(err, providers.ErrRateLimited):
		return httputil.WriteError(c, fiber.StatusTooManyRequests, "Provider rate limit reached, try again later")
	case errors.Is(err, billingsvc.ErrNotConfigured):
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		slog.ErrorContext(userContext(c), "request failed", "path", c.Path(), "error", err)
		return httputil.WriteError(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
