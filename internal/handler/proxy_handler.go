package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"socialnet/internal/middleware"
)

// ProxyHandler forwards gateway requests to downstream services, preserving
// the original path and query.
type ProxyHandler struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewProxyHandler(timeout time.Duration, log *zap.Logger) *ProxyHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProxyHandler{timeout: timeout, log: log}
}

func (h *ProxyHandler) Forward(target string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only the session middleware may set the identity header.
		if middleware.GetUserID(c) == "" {
			c.Request().Header.Del(middleware.UserIDHeader)
		}

		if err := proxy.DoTimeout(c, target+c.OriginalURL(), h.timeout); err != nil {
			h.log.Warn("upstream request failed",
				zap.String("target", target),
				zap.String("path", c.Path()),
				zap.Error(err))
			return middleware.BadGateway("errors.upstream_unavailable")
		}

		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}
