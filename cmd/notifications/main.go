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
	"socialnet/internal/repository"
	"socialnet/internal/server"
	"socialnet/internal/service/notification"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load("4002")

	logg, err := logger.New(cfg.Environment, "notifications")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		logg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

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

	repos := repository.NewRepositories(db)
	notifService := notification.NewService(repos.Notification, messageBus, cfg.DispatchChannel, logg.Named("producer"))

	ctx, stop := server.SignalContext()
	defer stop()

	consumer := bus.NewConsumer(messageBus, logg.Named("bus"), cfg.ConsumerOptions())
	go func() {
		_ = consumer.Run(ctx, cfg.CommentCreatedChannel, notifService.HandleMessage)
	}()

	app := server.New(cfg, logg)
	h := handler.NewNotificationHandler(notifService)

	notifications := app.Group("/api/notifications", middleware.RequireIdentity())
	notifications.Get("/", h.List)
	notifications.Get("/unread-count", h.GetUnreadCount)
	notifications.Post("/mark-read", h.MarkRead)

	if err := server.Run(ctx, app, cfg.Port, logg); err != nil {
		logg.Fatal("server failed", zap.Error(err))
	}
}
