package main

import (
	"context"
	"encoding/json"
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
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/services/payment"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const consumerName = "payment-service"

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

	paymentRepo := postgres.NewPaymentRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	deadRepo := postgres.NewDeadLetterRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	gateway := client.NewPaymentClient(cfg.Collaborators.PaymentGatewayURL, cfg.Collaborators.InternalToken, infraFactory.Policy("payment-gateway"))
	emitter := bus.NewEmitter(outboxRepo, consumerName)
	handler := payment.NewHandler(paymentRepo, emitter, gateway, logger)

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

	// Internal API: the payment record is the authoritative charge state the
	// recovery sweeper queries when a saga is stuck.
	go func() {
		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/internal/payments/{id}/status", func(w http.ResponseWriter, req *http.Request) {
			rec, err := paymentRepo.GetByTransactionID(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			status := "UNKNOWN" // no record: the charge was never attempted here
			if rec != nil {
				status = rec.Status
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": status})
		})
		logger.Info("payment consumer starting", "port", cfg.HTTP.Port)
		if err := http.ListenAndServe(":"+cfg.HTTP.Port, r); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	if err := router.Run(ctx); err != nil {
		logger.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
