// Package app assembles the engines and their stores from configuration.
// Both binaries build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/engine/filters"
	"relaydesk/internal/engine/webhooks"
	"relaydesk/internal/platform/audit"
	"relaydesk/internal/platform/auth"
	"relaydesk/internal/platform/broadcast"
	"relaydesk/internal/platform/config"
	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/repositories"
)

type App struct {
	Config   *config.Config
	GlobalDB *sql.DB
	Tenants  *database.TenantDBPool

	Orgs      *repositories.OrganizationRepository
	Tokens    *repositories.AccessTokenRepository
	Rules     *repositories.RuleRepository
	Workflows *repositories.WorkflowRepository
	Webhooks  *repositories.WebhookRepository
	Logs      *repositories.DeliveryLogRepository

	TokenSvc    *auth.TokenService
	Gate        *auth.Gate
	Dispatcher  *webhooks.Dispatcher
	Evaluator   *filters.Evaluator
	Recorder    *audit.Recorder
	Broadcaster broadcast.Broadcaster

	direct     *audit.DirectSink
	kafkaSink  *audit.KafkaSink
	redis      *redis.Client
	redisBcast *broadcast.Redis
}

// New opens the databases and wires every engine. Mutations go to Kafka
// when brokers are configured and are dispatched in-process otherwise.
func New(cfg *config.Config) (*App, error) {
	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		return nil, fmt.Errorf("connect global db: %w", err)
	}
	if err := database.MigrateGlobal(globalDB); err != nil {
		globalDB.Close()
		return nil, fmt.Errorf("migrate global db: %w", err)
	}

	a := &App{
		Config:   cfg,
		GlobalDB: globalDB,
		Tenants:  database.NewTenantDBPool(cfg.Database.Tenant),
		TokenSvc: auth.NewTokenService(cfg.JWT),
	}

	a.Orgs = repositories.NewOrganizationRepository(globalDB)
	a.Tokens = repositories.NewAccessTokenRepository(globalDB)
	a.Rules = repositories.NewRuleRepository(a.Tenants)
	a.Workflows = repositories.NewWorkflowRepository(a.Tenants)
	a.Webhooks = repositories.NewWebhookRepository(a.Tenants)
	a.Logs = repositories.NewDeliveryLogRepository(a.Tenants)

	a.Gate = auth.NewGate(a.Tokens, cfg.Tokens.Pepper, cfg.Tokens.TouchTimeout)

	a.Dispatcher = webhooks.NewDispatcher(a.Webhooks, a.Logs, webhooks.NewRestyTransport(cfg.Webhooks.Timeout), webhooks.Options{
		MaxAttempts:    cfg.Webhooks.MaxAttempts,
		InitialBackoff: cfg.Webhooks.InitialBackoff,
		MaxBackoff:     cfg.Webhooks.MaxBackoff,
		AttemptTimeout: cfg.Webhooks.Timeout,
	})

	var sink audit.Sink
	if cfg.Kafka.Brokers != "" {
		ks, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.MutationsTopic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		a.kafkaSink, sink = ks, ks
	} else {
		a.direct = audit.NewDirectSink(a.Dispatcher, cfg.Webhooks.DispatchTimeout)
		sink = a.direct
	}
	a.Recorder = audit.NewRecorder(sink)

	deps := filters.Deps{
		Rules:     a.Rules,
		Workflows: a.Workflows,
		Logs:      a.Logs,
		Notifier:  filters.NewHTTPNotifier(),
		Recorder:  a.Recorder,
	}
	if cfg.Filters.ClassifierURL != "" {
		deps.Classifier = filters.NewHTTPClassifier(cfg.Filters.ClassifierURL, cfg.Filters.ClassifierToken, cfg.Filters.ClassifierTimeout)
	}
	a.Evaluator = filters.NewEvaluator(deps, filters.Options{
		ClassifierTimeout: cfg.Filters.ClassifierTimeout,
		WorkflowTimeout:   cfg.Filters.WorkflowTimeout,
	})

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.redisBcast = broadcast.NewRedis(a.redis, cfg.Redis.Channel, a.Dispatcher)
		a.Broadcaster = a.redisBcast
	} else {
		a.Broadcaster = broadcast.NewLocal(a.Dispatcher)
	}

	return a, nil
}

// Start runs background listeners until ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	go func() {
		if err := a.redisBcast.Subscribe(ctx); err != nil {
			log.Error().Err(err).Msg("endpoint change subscription stopped")
		}
	}()
	return nil
}

// Close waits for in-process dispatches and releases every connection.
func (a *App) Close() {
	if a.direct != nil {
		a.direct.Wait()
	}
	if a.kafkaSink != nil {
		if err := a.kafkaSink.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka sink")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.Tenants.CloseAll()
	a.GlobalDB.Close()
}
