package api

import (
	"net/http"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func NewRouter(h *Handlers, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Purchase entry point; the Idempotency-Key header guards double submits.
	r.With(middleware.Idempotency(redisClient)).Post("/purchases", h.CreatePurchase)

	r.Get("/transactions/{id}", h.GetTransaction)
	r.Get("/transactions/{id}/workflow", h.GetWorkflow)
	r.Post("/transactions/{id}/cancel", h.CancelTransaction)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
