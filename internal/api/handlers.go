package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/saga"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	createPurchaseUC *saga.CreatePurchase
	cancelUC         *saga.CancelTransaction
	getTransactionUC *usecase.GetTransaction
	getWorkflowUC    *usecase.GetWorkflow
}

func NewHandlers(createPurchaseUC *saga.CreatePurchase, cancelUC *saga.CancelTransaction, getTransactionUC *usecase.GetTransaction, getWorkflowUC *usecase.GetWorkflow) *Handlers {
	return &Handlers{
		createPurchaseUC: createPurchaseUC,
		cancelUC:         cancelUC,
		getTransactionUC: getTransactionUC,
		getWorkflowUC:    getWorkflowUC,
	}
}

func (h *Handlers) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var params saga.CreatePurchaseParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.createPurchaseUC.Execute(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, saga.ErrInvalidPurchase):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, saga.ErrUnavailable):
			// Business failure, not a system error: the purchase is
			// rejected synchronously, no saga was started.
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"status":         t.Status,
		"transaction_id": t.ID,
		"total_amount":   t.TotalAmount,
	})
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing transaction id", http.StatusBadRequest)
		return
	}

	t, err := h.getTransactionUC.Execute(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	json.NewEncoder(w).Encode(t)
}

func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing transaction id", http.StatusBadRequest)
		return
	}

	workflow, err := h.getWorkflowUC.Execute(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	json.NewEncoder(w).Encode(workflow)
}

func (h *Handlers) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing transaction id", http.StatusBadRequest)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req) // reason is optional

	if err := h.cancelUC.Execute(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, saga.ErrNotCancellable) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}
