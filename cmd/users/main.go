package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"socialnet/internal/config"
	"socialnet/internal/handler"
	"socialnet/internal/middleware"
	"socialnet/internal/pkg/logger"
	"socialnet/internal/repository"
	"socialnet/internal/server"
	"socialnet/internal/service/auth"
	"socialnet/internal/service/email"
	"socialnet/internal/session"
)

const refreshTokenSweepInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load("4000")

	logg, err := logger.New(cfg.Environment, "users")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if cfg.JWTSecret == "" {
		logg.Fatal("JWT_SECRET must be set")
	}

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

	repos := repository.NewRepositories(db)
	sessions := session.NewRedisStore(rdb, cfg.SessionTTL)
	authService := auth.NewService(repos.User, repos.RefreshToken, sessions, email.NewService(cfg, logg), cfg, logg.Named("auth"))

	ctx, stop := server.SignalContext()
	defer stop()
	go sweepRefreshTokens(ctx, repos.RefreshToken, logg)

	app := server.New(cfg, logg)
	h := handler.NewAuthHandler(authService, cfg)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)
	authGroup.Post("/refresh", h.RefreshToken)
	authGroup.Post("/logout", h.Logout)

	profile := app.Group("/api/profile", middleware.JWTRequired(authService))
	profile.Get("/me", h.GetProfile)

	if err := server.Run(ctx, app, cfg.Port, logg); err != nil {
		logg.Fatal("server failed", zap.Error(err))
	}
}

func sweepRefreshTokens(ctx context.Context, repo repository.RefreshTokenRepository, log *zap.Logger) {
	ticker := time.NewTicker(refreshTokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.DeleteExpired(ctx); err != nil {
				log.Warn("failed to delete expired refresh tokens", zap.Error(err))
			}
		}
	}
}
