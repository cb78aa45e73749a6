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

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/lboeman/solarforecastarbiter-api/internal/app"
	"github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/invites"
	"github.com/lboeman/solarforecastarbiter-api/internal/observability"
	"github.com/lboeman/solarforecastarbiter-api/internal/org"
	"github.com/lboeman/solarforecastarbiter-api/internal/platform/cache"
	"github.com/lboeman/solarforecastarbiter-api/internal/platform/db"
	"github.com/lboeman/solarforecastarbiter-api/internal/rbac"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, identity cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	validate := validator.New()

	var identityRepo identity.RepositoryPort = identity.NewRepository(pool)
	if redisClient != nil {
		identityRepo = identity.NewCachedRepository(identityRepo, redisClient, cfg.IdentityTTL)
	}
	identityService := identity.NewService(identityRepo)
	identityHandler := identity.NewHandler(logger, identityService)

	evaluator := rbac.NewEvaluator(nil)
	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo, evaluator, metrics)
	rbacHandler := rbac.NewHandler(logger, rbacService, validate)

	orgRepo := org.NewRepository(pool)
	orgService := org.NewService(orgRepo, logger)
	orgHandler := org.NewHandler(logger, orgService, validate)

	invitesRepo := invites.NewRepository(pool)
	invitesService := invites.NewService(invitesRepo, evaluator)
	invitesHandler := invites.NewHandler(logger, invitesService, validate)

	if err := orgService.EnsureUnaffiliated(ctx); err != nil {
		logger.Error("ensure unaffiliated organization", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		IdentityService: identityService,
		IdentityHandler: identityHandler,
		RBACHandler:     rbacHandler,
		OrgHandler:      orgHandler,
		InvitesHandler:  invitesHandler,
		Metrics:         metrics,
	})

	apiServer := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsMux,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Info("starting metrics server", slog.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
		}
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
