package user

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/app"
	"github.com/ncecere/spendwatch/internal/auth"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/httpserver/httputil"
)

const refreshCookieSuffix = "_refresh"

func registerAuthRoutes(router fiber.Router, container *app.Container) {
	handler := &authHandler{
		authService: container.Auth,
		plans:       container.Plans,
		session:     container.Config.Auth.Session,
		appURL:      container.Config.Server.AppURL,
	}

	router.Get("/methods", handler.listMethods)
	router.Post("/signup", handler.signup)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Get("/oidc/start", handler.oidcStart)
	router.Get("/oidc/callback", handler.oidcCallback)
}

type authHandler struct {
	authService *auth.Service
	plans       accounts.Catalog
	session     config.SessionConfig
	appURL      string
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string       `json:"access_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	Method           string       `json:"method"`
	User             userResponse `json:"user"`
}

func (h *authHandler) listMethods(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"methods": h.authService.AllowedAuthMethods(),
	})
}

func (h *authHandler) signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "email and password required")
	}

	pair, user, err := h.authService.Signup(userContext(c), req.Email, req.Password, req.Name)
	if err != nil {
		return writeServiceError(c, err)
	}
	h.setSessionCookies(c, pair)
	return c.Status(fiber.StatusCreated).JSON(h.tokenResponse(pair, user, auth.MethodLocal))
}

func (h *authHandler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "email and password required")
	}

	pair, user, err := h.authService.Login(userContext(c), req.Email, req.Password)
	if err != nil {
		return writeServiceError(c, err)
	}
	h.setSessionCookies(c, pair)
	return c.JSON(h.tokenResponse(pair, user, auth.MethodLocal))
}

func (h *authHandler) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token = strings.TrimSpace(c.Cookies(h.session.CookieName + refreshCookieSuffix))
	}
	if token == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "refresh token required")
	}

	pair, user, err := h.authService.Refresh(userContext(c), token)
	if err != nil {
		return writeServiceError(c, err)
	}
	h.setSessionCookies(c, pair)
	return c.JSON(h.tokenResponse(pair, user, "refresh"))
}

func (h *authHandler) logout(c *fiber.Ctx) error {
	h.clearSessionCookies(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *authHandler) oidcStart(c *fiber.Ctx) error {
	authURL, err := h.authService.OIDCStart(userContext(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	if c.Query("redirect") == "1" {
		return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
	}
	return c.JSON(fiber.Map{"auth_url": authURL})
}

func (h *authHandler) oidcCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "state and code required")
	}

	pair, _, err := h.authService.OIDCCallback(userContext(c), state, code)
	if err != nil {
		return c.Redirect(appendQueryParam(h.appURL+"/login", "error", err.Error()), fiber.StatusTemporaryRedirect)
	}
	h.setSessionCookies(c, pair)
	return c.Redirect(h.appURL+"/dashboard", fiber.StatusTemporaryRedirect)
}

func (h *authHandler) tokenResponse(pair *auth.TokenPair, user db.User, method string) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Method:           method,
		User:             toUserResponse(user, h.plans),
	}
}

func (h *authHandler) setSessionCookies(c *fiber.Ctx, pair *auth.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     h.session.CookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HTTPOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     h.session.CookieName + refreshCookieSuffix,
		Value:    pair.RefreshToken,
		Path:     "/api/auth",
		Expires:  pair.RefreshExpiresAt,
		HTTPOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *authHandler) clearSessionCookies(c *fiber.Ctx) {
	for name, path := range map[string]string{
		h.session.CookieName:                       "/",
		h.session.CookieName + refreshCookieSuffix: "/api/auth",
	} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Expires:  time.Unix(0, 0),
			HTTPOnly: true,
			Secure:   h.session.CookieSecure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

func appendQueryParam(path string, key, value string) string {
	if key == "" || value == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, key, url.QueryEscape(value))
}
