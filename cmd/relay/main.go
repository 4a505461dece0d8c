package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/application/factories/infrastructure"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/config"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/kafka"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The relay is the only writer to Kafka: it drains the shared outbox table
// and publishes each row keyed by correlation id.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	outboxRepo := postgres.NewOutboxRepository(pgPool)

	producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	defer producer.Close()

	publisher := bus.NewPublisher(producer, logger)
	poller := worker.NewOutboxPoller(outboxRepo, publisher, cfg.Relay.Interval, cfg.Relay.BatchSize, logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		logger.Info("outbox relay starting", "port", cfg.HTTP.Port, "topic", cfg.Kafka.Topic)
		if err := http.ListenAndServe(":"+cfg.HTTP.Port, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	if err := poller.Run(ctx); err != nil {
		logger.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
