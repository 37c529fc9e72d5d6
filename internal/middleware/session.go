package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"socialnet/internal/session"
)

const SessionTokenContextKey = "session_token"

// SessionToken extracts the opaque session token from the cookie or a Bearer
// Authorization header, in that order.
func SessionToken(c *fiber.Ctx, cookieName string) string {
	if v := c.Cookies(cookieName); v != "" {
		return v
	}
	return bearerToken(c)
}

func bearerToken(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// SessionRequired resolves the caller's session, extends its expiry and
// replaces any client-supplied identity header with the resolved one.
// Unknown sessions get 401; a failing session store gets 503.
func SessionRequired(resolver session.Resolver, cookieName string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Request().Header.Del(UserIDHeader)

		err := resolveSession(c, resolver, cookieName)
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, session.ErrUnauthenticated):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "errors.unauthorized"})
		default:
			log.Warn("session lookup failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "errors.service_unavailable"})
		}
	}
}

// SessionOptional injects the identity when a session resolves and otherwise
// forwards the request without one, leaving the decision to the upstream
// service (which may accept a Bearer access token instead).
func SessionOptional(resolver session.Resolver, cookieName string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Request().Header.Del(UserIDHeader)

		err := resolveSession(c, resolver, cookieName)
		if err != nil && !errors.Is(err, session.ErrUnauthenticated) {
			log.Warn("session lookup failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "errors.service_unavailable"})
		}
		return c.Next()
	}
}

func resolveSession(c *fiber.Ctx, resolver session.Resolver, cookieName string) error {
	token := SessionToken(c, cookieName)
	identity, err := resolver.Resolve(c.UserContext(), token)
	if err == nil {
		err = resolver.Touch(c.UserContext(), token)
	}
	if err != nil {
		return err
	}

	c.Request().Header.Set(UserIDHeader, identity.String())
	c.Locals(UserIDContextKey, identity.String())
	c.Locals(SessionTokenContextKey, token)
	return nil
}
