package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdesk/crewdesk/internal/app/migrate"
	httpx "github.com/crewdesk/crewdesk/internal/http"
	"github.com/crewdesk/crewdesk/internal/repository/postgres"
	"github.com/crewdesk/crewdesk/internal/service/analytics"
	"github.com/crewdesk/crewdesk/internal/service/auth"
	"github.com/crewdesk/crewdesk/internal/service/authz"
	"github.com/crewdesk/crewdesk/internal/service/billing"
	"github.com/crewdesk/crewdesk/internal/service/file"
	"github.com/crewdesk/crewdesk/internal/service/project"
	"github.com/crewdesk/crewdesk/internal/service/task"
	"github.com/crewdesk/crewdesk/internal/service/team"
	"github.com/crewdesk/crewdesk/pkg/config"
	"github.com/crewdesk/crewdesk/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	authSvc := auth.New(repo, repo, log, cfg)
	authzSvc := authz.New(repo, repo, log)
	teamSvc := team.New(repo, repo, authzSvc, log)
	projectSvc := project.New(repo, repo, authzSvc, log)
	taskSvc := task.New(repo, repo, repo, repo, authzSvc, log)
	store := file.NewLinkSigner(cfg.FileBaseURL, cfg.FileSignSecret)
	fileSvc := file.New(repo, repo, repo, authzSvc, store, log, cfg.UploadURLTTL)
	analyticsSvc := analytics.New(repo, repo, repo, authzSvc, log, cfg.ActivityWindowDays)
	billingSvc := billing.New(repo, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, teamSvc, projectSvc, taskSvc, fileSvc, analyticsSvc, billingSvc, limiter, cfg.BillingWebhookKey, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
