package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/api"
	"relaydesk/internal/api/handlers"
	"relaydesk/internal/api/middleware"
	"relaydesk/internal/app"
	"relaydesk/internal/pkg/logger"
	"relaydesk/internal/platform/config"
	"relaydesk/internal/platform/metrics"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start background listeners")
	}

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(a.TokenSvc)
	tenantMiddleware := middleware.NewTenantMiddleware(a.Orgs, a.Tenants)
	adminLimiter := middleware.NewRateLimiter(cfg.RateLimit.AdminPerSecond, cfg.RateLimit.AdminBurst)
	externalLimiter := middleware.NewRateLimiter(cfg.RateLimit.ExternalPerSecond, cfg.RateLimit.ExternalBurst)
	go adminLimiter.CleanupLoop(5*time.Minute, ctx.Done())
	go externalLimiter.CleanupLoop(5*time.Minute, ctx.Done())

	// Router
	deps := &api.Dependencies{
		OrgHandler:       handlers.NewOrgHandler(a.Orgs, a.Tenants, a.TokenSvc, cfg.Server.BootstrapKey),
		FilterHandler:    handlers.NewFilterHandler(a.Rules, a.Recorder),
		WorkflowHandler:  handlers.NewWorkflowHandler(a.Workflows, a.Recorder),
		WebhookHandler:   handlers.NewWebhookHandler(a.Webhooks, a.Dispatcher, a.Broadcaster, a.Recorder),
		LogHandler:       handlers.NewLogHandler(a.Logs),
		TokenHandler:     handlers.NewTokenHandler(a.Gate),
		ExternalHandler:  handlers.NewExternalHandler(a.Evaluator, a.Recorder),
		HealthHandler:    handlers.NewHealthHandler(a.GlobalDB),
		MetricsHandler:   handlers.NewMetricsHandler(metrics.Registry),
		AuthMiddleware:   authMiddleware,
		TenantMiddleware: tenantMiddleware,
		TokenGate:        middleware.NewTokenGate(a.Gate, tenantMiddleware),
		AdminLimiter:     adminLimiter,
		ExternalLimiter:  externalLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
