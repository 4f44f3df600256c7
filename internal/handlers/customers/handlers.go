package customers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apphttp "daybook/internal/http"
	"daybook/internal/models"
	"daybook/internal/services/ledger"
	"daybook/internal/services/txstore"
)

var store *txstore.Store

// Initialize sets up the customers package with required dependencies
func Initialize(s *txstore.Store) {
	store = s
}

// RegisterRoutes registers the customer ledger routes
func RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(apphttp.RequireUnlocked(func() bool { return store.Locked() }))
		r.Get("/customers", handleList)
		r.Get("/customers/outstanding", handleOutstanding)
		r.Get("/customers/{particulars}", handleLedger)
	})
}

// LedgerSummary is a ledger without its transaction history, for listings
type LedgerSummary struct {
	Key                 string               `json:"key"`
	Particulars         string               `json:"particulars"`
	TotalSales          decimal.Decimal      `json:"totalSales"`
	TotalPayments       decimal.Decimal      `json:"totalPayments"`
	CurrentBalance      decimal.Decimal      `json:"currentBalance"`
	Status              models.BalanceStatus `json:"status"`
	TransactionCount    int                  `json:"transactionCount"`
	LastTransactionDate string               `json:"lastTransactionDate"`
}

func summarize(ledgers []models.CustomerLedger) []LedgerSummary {
	out := make([]LedgerSummary, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, LedgerSummary{
			Key:                 l.Key,
			Particulars:         l.Particulars,
			TotalSales:          l.TotalSales,
			TotalPayments:       l.TotalPayments,
			CurrentBalance:      l.CurrentBalance,
			Status:              l.Status,
			TransactionCount:    l.TransactionCount,
			LastTransactionDate: l.LastTransactionDate,
		})
	}
	return out
}

func handleList(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"customers": summarize(store.Ledgers()),
	})
}

func handleOutstanding(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"customers": summarize(store.Outstanding()),
	})
}

func handleLedger(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "particulars"))
	if err != nil {
		apphttp.ErrorResponse(w, r, "Invalid customer name", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	start, err := apphttp.ParseDate("start", q.Get("start"))
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}
	end, err := apphttp.ParseDate("end", q.Get("end"))
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	l, err := store.Ledger(name)
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	view := ledger.FilterByDate(l, start, end)
	if view.Transactions == nil {
		view.Transactions = []models.Transaction{}
	}
	apphttp.WriteJSON(w, http.StatusOK, view)
}
