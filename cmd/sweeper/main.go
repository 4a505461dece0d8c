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
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/saga"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/sweeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The sweeper resolves sagas stranded by a crash between the payment and
// dispensing legs. It consults the payment gateway for ground truth before
// deciding to advance, fail or cancel each stuck transaction.
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

	txRepo := postgres.NewTransactionRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	payments := client.NewPaymentClient(cfg.Collaborators.PaymentGatewayURL, cfg.Collaborators.InternalToken, infraFactory.Policy("payment-gateway"))
	emitter := bus.NewEmitter(outboxRepo, "recovery-sweeper")
	workflow := saga.NewWorkflow(txRepo, emitter, payments, logger)

	s := sweeper.New(sweeper.Config{
		Interval:   cfg.Sweeper.Interval,
		StuckAfter: cfg.Sweeper.StuckAfter,
		BatchSize:  cfg.Sweeper.BatchSize,
	}, txManager, txRepo, emitter, workflow, payments, logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		logger.Info("sweeper starting", "port", cfg.HTTP.Port, "interval", cfg.Sweeper.Interval)
		if err := http.ListenAndServe(":"+cfg.HTTP.Port, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	if err := s.Run(ctx); err != nil {
		logger.Error("sweeper stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
