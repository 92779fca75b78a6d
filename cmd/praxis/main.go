package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/praxis-platform/praxis/internal/app"
	"github.com/praxis-platform/praxis/internal/audit"
	"github.com/praxis-platform/praxis/internal/auth"
	"github.com/praxis-platform/praxis/internal/authz"
	"github.com/praxis-platform/praxis/internal/observability"
	"github.com/praxis-platform/praxis/internal/platform/cache"
	"github.com/praxis-platform/praxis/internal/platform/db"
	"github.com/praxis-platform/praxis/internal/questionnaire"
	"github.com/praxis-platform/praxis/internal/rbac"
	"github.com/praxis-platform/praxis/internal/roles"
	"github.com/praxis-platform/praxis/internal/session"
	"github.com/praxis-platform/praxis/internal/token"
	"github.com/praxis-platform/praxis/internal/users"
	"github.com/praxis-platform/praxis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("close redis", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditLogger := audit.NewLogger(pool, logger)
	registry := session.NewRedisRegistry(redisClient)
	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	permCache := rbac.NewPermissionCache(redisClient, cfg.PermCacheTTL)
	rbacService := rbac.NewService(rbac.NewRepository(pool), permCache)

	evaluator := authz.NewEvaluator(rbacService)
	guard := authz.NewMiddleware(logger, tokens, registry, evaluator, auditLogger)
	guard.Metrics = metrics

	authService := auth.NewService(logger, auth.NewRepository(pool), tokens, registry, rbacService, auditLogger, cfg.SessionCeiling)
	authService.Metrics = metrics
	authHandler := auth.NewHandler(logger, authService, guard)
	authHandler.LoginLimiter = app.LoginRateLimiter(cfg.LoginRateLimit)

	usersService := users.NewService(logger, users.NewRepository(pool), rbacService, registry, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	rolesHandler := roles.NewHandler(logger, rbacService, guard)

	questService := questionnaire.NewService(questionnaire.NewRepository(pool), auditLogger)
	questHandler := questionnaire.NewHandler(logger, questService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("close asynq inspector", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		AuthHandler:          authHandler,
		UsersHandler:         usersHandler,
		RolesHandler:         rolesHandler,
		QuestionnaireHandler: questHandler,
		JobsHandler:          jobsHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
