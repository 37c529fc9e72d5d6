package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"socialnet/internal/middleware"
	"socialnet/internal/pkg/metrics"
	"socialnet/internal/realtime"
	"socialnet/internal/session"
)

const (
	wsTokenLocal    = "ws_token"
	unauthorizedMsg = "errors.unauthorized"
)

type RealtimeOptions struct {
	CookieName       string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// PingInterval is how often the server pings; a client that stays
	// silent for two intervals is dropped.
	PingInterval   time.Duration
	MaxMessageSize int64
}

// RealtimeHandler serves the /ws endpoint. A socket is registered only after
// its session resolves; until then nothing is pushed to it.
type RealtimeHandler struct {
	resolver session.Resolver
	registry *realtime.Registry
	opts     RealtimeOptions
	log      *zap.Logger
}

func NewRealtimeHandler(resolver session.Resolver, registry *realtime.Registry, opts RealtimeOptions, log *zap.Logger) *RealtimeHandler {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	return &RealtimeHandler{resolver: resolver, registry: registry, opts: opts, log: log}
}

// Upgrade rejects plain HTTP requests and captures any handshake token from
// the cookie, Authorization header or token query parameter.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := middleware.SessionToken(c, h.opts.CookieName)
	if token == "" {
		token = c.Query("token")
	}
	c.Locals(wsTokenLocal, token)
	return c.Next()
}

func (h *RealtimeHandler) Handle() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *RealtimeHandler) serve(ws *websocket.Conn) {
	ws.SetReadLimit(h.opts.MaxMessageSize)
	deadline := time.Now().Add(h.opts.HandshakeTimeout)

	identity, reason := h.authenticate(ws, deadline)
	if reason != "" {
		h.reject(ws, reason)
		return
	}

	conn := &socketConn{id: uuid.NewString(), ws: ws, writeTimeout: h.opts.WriteTimeout}
	h.registry.Register(identity, conn)
	metrics.RealtimeConnections.Inc()
	log := h.log.With(zap.String("user_id", identity.String()), zap.String("conn", conn.id))
	log.Debug("socket registered")

	defer func() {
		h.registry.Unregister(identity, conn)
		conn.markClosed()
		metrics.RealtimeConnections.Dec()
		log.Debug("socket unregistered")
	}()

	frame, err := realtime.ConnectedFrame(identity.String())
	if err == nil {
		err = conn.Send(context.Background(), frame)
	}
	if err != nil {
		log.Debug("failed to send connected frame", zap.Error(err))
		return
	}

	pongWait := 2 * h.opts.PingInterval
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go conn.keepAlive(done, h.opts.PingInterval)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			log.Debug("socket read ended", zap.Error(err))
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// authenticate returns the resolved identity, or a non-empty rejection reason.
func (h *RealtimeHandler) authenticate(ws *websocket.Conn, deadline time.Time) (session.Identity, string) {
	token, _ := ws.Locals(wsTokenLocal).(string)

	if token == "" {
		_ = ws.SetReadDeadline(deadline)
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return "", "handshake_timeout"
		}
		var f realtime.Frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Type != realtime.FrameAuth {
			return "", "bad_auth_frame"
		}
		token = strings.TrimSpace(f.Token)
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	identity, err := h.resolver.Resolve(ctx, token)
	if err == nil {
		err = h.resolver.Touch(ctx, token)
	}
	if err != nil {
		if !errors.Is(err, session.ErrUnauthenticated) {
			h.log.Warn("socket session lookup failed", zap.Error(err))
			return "", "lookup_failed"
		}
		return "", "unauthenticated"
	}
	return identity, ""
}

func (h *RealtimeHandler) reject(ws *websocket.Conn, reason string) {
	metrics.RealtimeRejected.WithLabelValues(reason).Inc()

	deadline := time.Now().Add(h.opts.WriteTimeout)
	if frame, err := realtime.ErrorFrame(unauthorizedMsg); err == nil {
		_ = ws.SetWriteDeadline(deadline)
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, unauthorizedMsg), deadline)
}

// socketConn serializes writes to one websocket.
type socketConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *socketConn) ID() string { return c.id }

func (c *socketConn) Send(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrStaleConnection
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.closed = true
		return fmt.Errorf("%w: %v", realtime.ErrStaleConnection, err)
	}
	return nil
}

func (c *socketConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrStaleConnection
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// keepAlive pings until done is closed or a ping fails.
func (c *socketConn) keepAlive(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (c *socketConn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
