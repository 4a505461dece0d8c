package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/api"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/application/factories/infrastructure"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/config"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/kafka"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/saga"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/usecase"
)

const consumerName = "transaction-service"

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

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// Repositories
	txRepo := postgres.NewTransactionRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	deadRepo := postgres.NewDeadLetterRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	// Collaborator clients
	inventoryClient := client.NewInventoryClient(cfg.Collaborators.InventoryURL, cfg.Collaborators.InternalToken, infraFactory.Policy("inventory"))
	paymentClient := client.NewPaymentClient(cfg.Collaborators.PaymentGatewayURL, cfg.Collaborators.InternalToken, infraFactory.Policy("payment"))

	emitter := bus.NewEmitter(outboxRepo, consumerName)

	// Saga
	workflow := saga.NewWorkflow(txRepo, emitter, paymentClient, logger)
	createPurchaseUC := saga.NewCreatePurchase(txManager, txRepo, emitter, inventoryClient, logger)
	cancelUC := saga.NewCancelTransaction(txManager, txRepo, workflow, emitter, logger)

	// Read side
	getTransactionUC := usecase.NewGetTransaction(redisClient, txRepo)
	getWorkflowUC := usecase.NewGetWorkflow(txRepo, outboxRepo, inboxRepo, deadRepo)

	// HTTP API
	handlers := api.NewHandlers(createPurchaseUC, cancelUC, getTransactionUC, getWorkflowUC)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(handlers, redisClient),
	}

	go func() {
		logger.Info("transaction API starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Consumer side: the saga's own state machine transitions.
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
	workflow.Register(router)

	go func() {
		if err := router.Run(ctx); err != nil {
			logger.Error("consumer stopped with error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
}
