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
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/config"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/kafka"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/services/dispensing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const consumerName = "dispensing-service"

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
	inboxRepo := postgres.NewInboxRepository(pgPool)
	deadRepo := postgres.NewDeadLetterRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	dispenser := client.NewDispenserClient(cfg.Collaborators.DispenserURL, cfg.Collaborators.InternalToken, infraFactory.Policy("dispenser"))
	emitter := bus.NewEmitter(outboxRepo, consumerName)
	handler := dispensing.NewHandler(dispenser, emitter, logger)

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = consumerName
	}
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID)
	defer kafkaConsumer.Close()

	producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	defer producer.Close()

	dlq := bus.NewDeadLetterHandler(consumerName, groupID+"-dlq", deadRepo, producer, logger)
	router := bus.NewRouter(consumerName, kafkaConsumer, txManager, inboxRepo, dlq,
		cfg.Consumer.MaxRetries, cfg.Consumer.Backoff, logger)
	handler.Register(router)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		logger.Info("dispensing consumer starting", "port", cfg.HTTP.Port)
		if err := http.ListenAndServe(":"+cfg.HTTP.Port, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	if err := router.Run(ctx); err != nil {
		logger.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
