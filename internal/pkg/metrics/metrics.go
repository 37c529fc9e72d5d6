package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BusMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_messages_total",
		Help: "Messages received from the bus, by channel and handler outcome.",
	}, []string{"channel", "outcome"})

	BusReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_reconnects_total",
		Help: "Subscription (re)establishment attempts that failed, by channel.",
	}, []string{"channel"})

	BusPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_publish_failures_total",
		Help: "Publish calls that could not reach the bus, by channel.",
	}, []string{"channel"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notifications persisted, by kind.",
	}, []string{"kind"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Authenticated realtime connections currently registered.",
	})

	RealtimeRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_rejected_total",
		Help: "Realtime connections rejected before registration, by reason.",
	}, []string{"reason"})

	DispatchPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_pushes_total",
		Help: "Notification pushes to realtime connections, by result.",
	}, []string{"result"})
)

// Handler exposes the default registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
