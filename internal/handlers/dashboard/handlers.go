package dashboard

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apphttp "daybook/internal/http"
	"daybook/internal/logger"
	"daybook/internal/models"
	"daybook/internal/services/export"
	"daybook/internal/services/metrics"
	"daybook/internal/services/txstore"
)

var (
	store   *txstore.Store
	summary *metrics.Service
	now     = time.Now
)

// Initialize sets up the dashboard package with required dependencies
func Initialize(s *txstore.Store, m *metrics.Service) {
	store = s
	summary = m
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(apphttp.RequireUnlocked(func() bool { return store.Locked() }))
		r.Get("/dashboard", handleDashboard)
		r.Get("/dashboard/export/{format}", handleExport)
	})
}

// Response is the body of GET /dashboard
type Response struct {
	Filter       models.TransactionFilter `json:"filter"`
	Summary      *models.DashboardSummary `json:"summary"`
	Transactions []models.Transaction     `json:"transactions"`
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := apphttp.ParseFilter(r)
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	// Totals cover the whole filtered set; limit only trims the listing
	limit := filter.Limit
	filter.Limit = 0
	filtered, ledgers := store.Dashboard(filter)

	listed := filtered.Truncate(limit).Transactions
	if listed == nil {
		listed = []models.Transaction{}
	}
	filter.Limit = limit

	apphttp.WriteJSON(w, http.StatusOK, Response{
		Filter:       filter,
		Summary:      summary.Summarize(filtered, ledgers),
		Transactions: listed,
	})
}

func handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")

	filter, err := apphttp.ParseFilter(r)
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	txs := store.Query(filter).Transactions

	// Render fully before touching headers so a failure can still send an error
	var buf bytes.Buffer
	if err := export.Write(&buf, format, txs); err != nil {
		apphttp.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(format, now())))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	log := logger.FromContext(r.Context())
	log.Info().
		Str("format", format).
		Int("rows", len(txs)).
		Msg("Transactions exported")
}
