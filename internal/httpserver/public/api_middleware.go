package public

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/app"
	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
)

const authBearerPrefix = "bearer "

// cronAuth requires the configured cron secret as a bearer token. With no
// secret configured every request is refused.
func cronAuth(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := container.Config.Sync.CronSecret
		if secret == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if !strings.HasPrefix(strings.ToLower(raw), authBearerPrefix) {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		token := strings.TrimSpace(raw[len(authBearerPrefix):])
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		return c.Next()
	}
}
