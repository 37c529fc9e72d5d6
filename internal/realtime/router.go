package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"socialnet/internal/bus"
	"socialnet/internal/domain"
	"socialnet/internal/pkg/metrics"
	"socialnet/internal/session"
)

var ErrMalformedEvent = errors.New("malformed dispatch message")

// Router delivers dispatch messages to the recipient's live connections.
// Recipients with no connections are skipped silently; they read the
// notification later over HTTP.
type Router struct {
	registry *Registry
	log      *zap.Logger
}

func NewRouter(registry *Registry, log *zap.Logger) *Router {
	return &Router{registry: registry, log: log}
}

func (r *Router) Handle(ctx context.Context, msg bus.Message) error {
	var dm domain.DispatchMessage
	if err := json.Unmarshal(msg.Payload, &dm); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	recipient := strings.TrimSpace(dm.RecipientUserID)
	if recipient == "" {
		return fmt.Errorf("%w: missing recipientUserId", ErrMalformedEvent)
	}

	conns := r.registry.Get(session.Identity(recipient))
	if len(conns) == 0 {
		metrics.DispatchPushes.WithLabelValues("offline").Inc()
		return nil
	}

	frame, err := NotificationFrame(dm)
	if err != nil {
		return err
	}

	for _, c := range conns {
		if err := c.Send(ctx, frame); err != nil {
			metrics.DispatchPushes.WithLabelValues("failed").Inc()
			r.log.Warn("push failed",
				zap.String("recipient", recipient),
				zap.String("conn", c.ID()),
				zap.String("notification", dm.ID),
				zap.Error(err))
			if errors.Is(err, ErrStaleConnection) {
				r.registry.Unregister(session.Identity(recipient), c)
			}
			continue
		}
		metrics.DispatchPushes.WithLabelValues("delivered").Inc()
	}
	return nil
}
