package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"socialnet/internal/service/auth"
)

const (
	// UserIDHeader carries the gateway-resolved identity to downstream services.
	UserIDHeader     = "X-User-Id"
	UserIDContextKey = "user_id"
)

// RequireIdentity trusts the identity header set by the gateway. Downstream
// services are only reachable through the gateway, which always overwrites it.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserIDHeader))
		if userID == "" {
			return Unauthorized("errors.unauthorized")
		}
		c.Locals(UserIDContextKey, userID)
		return c.Next()
	}
}

type AccessTokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// JWTRequired accepts the gateway identity header or, when it is absent, a
// Bearer access token issued at login.
func JWTRequired(validator AccessTokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := strings.TrimSpace(c.Get(UserIDHeader)); userID != "" {
			c.Locals(UserIDContextKey, userID)
			return c.Next()
		}

		token := bearerToken(c)
		if token == "" {
			return Unauthorized("errors.unauthorized")
		}
		claims, err := validator.ValidateAccessToken(token)
		if err != nil || claims.Subject == "" {
			return Unauthorized("errors.unauthorized")
		}

		c.Locals(UserIDContextKey, claims.Subject)
		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(UserIDContextKey).(string)
	return userID
}

// GetUserUUID parses the identity for services keyed by UUID.
func GetUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(GetUserID(c))
	if err != nil {
		return uuid.Nil, Unauthorized("errors.unauthorized")
	}
	return id, nil
}
