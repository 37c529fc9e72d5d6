package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"socialnet/internal/config"
	"socialnet/internal/handler"
	"socialnet/internal/middleware"
	"socialnet/internal/pkg/logger"
	"socialnet/internal/repository"
	"socialnet/internal/server"
	"socialnet/internal/service/post"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load("4001")

	logg, err := logger.New(cfg.Environment, "posts")
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
	postService := post.NewService(repos.Post, repos.Comment, messageBus, cfg.CommentCreatedChannel, logg.Named("posts"))

	ctx, stop := server.SignalContext()
	defer stop()

	app := server.New(cfg, logg)
	h := handler.NewPostHandler(postService)

	posts := app.Group("/api/posts", middleware.RequireIdentity())
	posts.Post("/", h.Create)
	posts.Get("/mine", h.ListMine)
	posts.Get("/:postId", h.Get)

	comments := app.Group("/api/comments", middleware.RequireIdentity())
	comments.Post("/", h.CreateComment)
	comments.Get("/:commentId", h.GetComment)

	if err := server.Run(ctx, app, cfg.Port, logg); err != nil {
		logg.Fatal("server failed", zap.Error(err))
	}
}
