package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/app"
	"relaydesk/internal/pkg/logger"
	"relaydesk/internal/platform/config"
	"relaydesk/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)
	log.Info().Msg("Starting relaydesk background workers")

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

	var wg sync.WaitGroup

	sweeper := workers.NewSweeper(a.Orgs, a.Logs, cfg.Workers.StaleAfter, cfg.Workers.SweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	if cfg.Kafka.Brokers == "" {
		log.Warn().Msg("No Kafka brokers configured, only the stale delivery sweeper runs")
	} else {
		consume := func(topic string, handle workers.Handler) {
			c, err := workers.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID, workers.ConsumerOptions{
				Concurrency:   cfg.Workers.Concurrency,
				HandleTimeout: cfg.Webhooks.DispatchTimeout,
			})
			if err != nil {
				log.Fatal().Err(err).Str("topic", topic).Msg("Failed to create consumer")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				if err := c.Run(ctx, handle); err != nil {
					log.Error().Err(err).Str("topic", topic).Msg("Consumer stopped")
					stop()
				}
			}()
		}
		consume(cfg.Kafka.MutationsTopic, workers.MutationHandler(a.Dispatcher))
		consume(cfg.Kafka.MessagesTopic, workers.MessageHandler(a.Evaluator))
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down workers")
	wg.Wait()
}
