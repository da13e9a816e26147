package user

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/app"
	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
)

const userAuthHeaderPrefix = "bearer "

func sessionMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		if token == "" {
			token = strings.TrimSpace(c.Cookies(container.Config.Auth.Session.CookieName))
		}
		if token == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		user, err := container.Auth.AuthorizeAccessToken(userContext(c), token)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		attachUserContext(c, user)
		return c.Next()
	}
}

func extractBearer(c *fiber.Ctx) string {
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, userAuthHeaderPrefix) {
		return ""
	}
	return strings.TrimSpace(raw[len(userAuthHeaderPrefix):])
}
