package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prodhub/production-api/internal/config"
	"github.com/prodhub/production-api/internal/database"
	"github.com/prodhub/production-api/internal/handler"
	"github.com/prodhub/production-api/internal/mail"
	"github.com/prodhub/production-api/internal/metrics"
	"github.com/prodhub/production-api/internal/middleware"
	"github.com/prodhub/production-api/internal/queue"
	"github.com/prodhub/production-api/internal/repository"
	"github.com/prodhub/production-api/internal/router"
	"github.com/prodhub/production-api/internal/service"
	"github.com/prodhub/production-api/internal/utils"
)

// tokenSweepInterval is how often expired refresh tokens are purged.
const tokenSweepInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not read .env: %v", err)
	}
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	signer, err := utils.NewTokenService(utils.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessExpiresIn,
		RefreshTTL:    cfg.RefreshExpiresIn,
	})
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	m := metrics.New()
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	mailClient := mail.NewClient(config.LoadMailConfig(), logger)

	var mailer service.ResetMailer = mailClient
	if cfg.MailQueueEnabled {
		amqpCfg := config.LoadAMQPConfig()
		mailer = service.NewMailPublisher(amqpCfg.URL, amqpCfg.Queue)
		go func() {
			if err := queue.StartMailConsumer(ctx, amqpCfg.URL, amqpCfg.Queue, mailClient.SendPasswordReset); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("mail consumer stopped: %v", err)
			}
		}()
	}

	authSvc := service.NewAuthService(users, tokens, signer, mailer, service.AuthOptions{
		BcryptCost:       cfg.BcryptCost,
		FrontendURL:      cfg.FrontendURL(),
		ExposeResetToken: cfg.ExposeResetToken(),
		Logger:           logger,
		Events:           m,
	})
	userSvc := service.NewUserService(users)
	projectSvc := service.NewProjectService(repository.NewProjectRepo(db), users)

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting per process")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := router.New(cfg, logger, m)
	router.RegisterRoutes(e, cfg.Version, m)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, logger), signer, limiter)
	router.RegisterUsers(e, handler.NewUsersHandler(userSvc, logger), signer)
	router.RegisterProjects(e, handler.NewProjectsHandler(projectSvc, logger), signer)

	go sweepTokens(ctx, tokens, logger)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// sweepTokens deletes expired refresh tokens until ctx is cancelled.
func sweepTokens(ctx context.Context, tokens *repository.TokenRepo, logger *slog.Logger) {
	t := time.NewTicker(tokenSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := tokens.DeleteExpired(ctx, now.UTC())
			if err != nil {
				logger.Error("purge expired refresh tokens", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired refresh tokens", "count", n)
			}
		}
	}
}
