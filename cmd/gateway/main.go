package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"socialnet/internal/bus"
	"socialnet/internal/config"
	"socialnet/internal/handler"
	"socialnet/internal/middleware"
	"socialnet/internal/pkg/logger"
	"socialnet/internal/realtime"
	"socialnet/internal/server"
	"socialnet/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load("3000")

	logg, err := logger.New(cfg.Environment, "gateway")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logg.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	messageBus, err := config.NewBus(cfg, rdb)
	if err != nil {
		logg.Fatal("failed to build message bus", zap.Error(err))
	}
	defer messageBus.Close()

	sessions := session.NewRedisStore(rdb, cfg.SessionTTL)
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry, logg.Named("router"))

	ctx, stop := server.SignalContext()
	defer stop()

	consumer := bus.NewConsumer(messageBus, logg.Named("bus"), cfg.ConsumerOptions())
	go func() {
		_ = consumer.Run(ctx, cfg.DispatchChannel, router.Handle)
	}()

	app := server.New(cfg, logg)

	rt := handler.NewRealtimeHandler(sessions, registry, handler.RealtimeOptions{
		CookieName:       cfg.SessionCookieName,
		HandshakeTimeout: cfg.WSHandshakeTimeout,
		WriteTimeout:     cfg.WSWriteTimeout,
		PingInterval:     cfg.WSPingInterval,
		MaxMessageSize:   cfg.WSMaxMessageSize,
	}, logg.Named("realtime"))
	app.Use("/ws", rt.Upgrade)
	app.Get("/ws", rt.Handle())

	proxy := handler.NewProxyHandler(cfg.ProxyTimeout, logg.Named("proxy"))
	authenticated := middleware.SessionRequired(sessions, cfg.SessionCookieName, logg)
	optional := middleware.SessionOptional(sessions, cfg.SessionCookieName, logg)

	app.All("/api/auth", proxy.Forward(cfg.UserServiceURL))
	app.All("/api/auth/*", proxy.Forward(cfg.UserServiceURL))
	// The users service also accepts Bearer access tokens on its profile routes.
	app.All("/api/profile", optional, proxy.Forward(cfg.UserServiceURL))
	app.All("/api/profile/*", optional, proxy.Forward(cfg.UserServiceURL))
	for prefix, target := range map[string]string{
		"/api/posts":         cfg.PostsServiceURL,
		"/api/comments":      cfg.PostsServiceURL,
		"/api/notifications": cfg.NotificationsServiceURL,
	} {
		app.All(prefix, authenticated, proxy.Forward(target))
		app.All(prefix+"/*", authenticated, proxy.Forward(target))
	}

	if err := server.Run(ctx, app, cfg.Port, logg); err != nil {
		logg.Fatal("server failed", zap.Error(err))
	}
}
