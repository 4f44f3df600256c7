package transactions

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apphttp "daybook/internal/http"
	"daybook/internal/logger"
	"daybook/internal/models"
	"daybook/internal/services/txstore"
)

var store *txstore.Store

// Initialize sets up the transactions package with required dependencies
func Initialize(s *txstore.Store) {
	store = s
}

// RegisterRoutes registers all transaction routes
func RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(apphttp.RequireUnlocked(func() bool { return store.Locked() }))
		r.Get("/transactions", handleQuery)
		r.Delete("/transactions", handleClear)
		r.Get("/transactions/particulars", handleParticulars)
		r.Patch("/transactions/{id}", handleUpdate)
	})
}

// QueryResponse is the body of GET /transactions
type QueryResponse struct {
	Count        int                      `json:"count"`
	Filter       models.TransactionFilter `json:"filter"`
	Transactions []models.Transaction     `json:"transactions"`
}

func handleQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := apphttp.ParseFilter(r)
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	result := store.Query(filter)
	txs := result.Transactions
	if txs == nil {
		txs = []models.Transaction{}
	}

	apphttp.WriteJSON(w, http.StatusOK, QueryResponse{
		Count:        len(txs),
		Filter:       filter,
		Transactions: txs,
	})
}

func handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch txstore.Patch
	if err := apphttp.DecodeJSON(r, &patch); err != nil {
		apphttp.Error(w, r, err)
		return
	}
	if patch.Empty() {
		apphttp.ErrorResponse(w, r, "Nothing to update", http.StatusBadRequest)
		return
	}

	updated, err := store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, updated)
}

func handleClear(w http.ResponseWriter, r *http.Request) {
	if err := store.Clear(r.Context()); err != nil {
		apphttp.Error(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Warn().Msg("Transaction store cleared by request")
	w.WriteHeader(http.StatusNoContent)
}

func handleParticulars(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, map[string][]string{
		"particulars": store.ParticularsHistory(r.URL.Query().Get("q")),
	})
}
