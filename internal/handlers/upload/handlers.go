package upload

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"daybook/internal/cache"
	apphttp "daybook/internal/http"
	"daybook/internal/logger"
	"daybook/internal/models"
	"daybook/internal/services/dataloader"
	"daybook/internal/services/txstore"
)

var (
	store    *txstore.Store
	staged   *cache.LRU[*models.StagedUpload]
	maxBytes int64
	now      = time.Now
)

// Initialize sets up the upload package with required dependencies
func Initialize(s *txstore.Store, c *cache.LRU[*models.StagedUpload], maxUploadBytes int64) {
	store = s
	staged = c
	maxBytes = maxUploadBytes
}

// RegisterRoutes registers the review-and-commit routes for spreadsheet uploads
func RegisterRoutes(r chi.Router) {
	r.Post("/uploads", handleUpload)
	r.Get("/uploads/{id}", handleGet)
	r.Put("/uploads/{id}/rows/{row}", handleEditRow)
	r.Delete("/uploads/{id}", handleDiscard)
	r.With(apphttp.RequireUnlocked(func() bool { return store.Locked() })).
		Post("/uploads/{id}/commit", handleCommit)
}

// CommitRequest picks the date every committed row is recorded under
type CommitRequest struct {
	Date string `json:"date"`
}

// CommitResponse reports what a commit added to the store
type CommitResponse struct {
	Added        int                  `json:"added"`
	Date         string               `json:"date"`
	Transactions []models.Transaction `json:"transactions"`
}

func handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		apphttp.ErrorResponse(w, r, "File too large or not a multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apphttp.ErrorResponse(w, r, "Missing form field 'file'", http.StatusBadRequest)
		return
	}
	defer file.Close()

	table, err := dataloader.ParseSpreadsheet(header.Filename, file)
	if err != nil {
		apphttp.ErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	up := &models.StagedUpload{
		ID:         uuid.NewString(),
		Filename:   header.Filename,
		UploadedAt: now().UTC(),
		Table:      table,
		RowTypes:   dataloader.PreviewTypes(table),
	}
	staged.Set(up.ID, up)

	log := logger.FromContext(r.Context())
	log.Info().
		Str("upload", up.ID).
		Str("file", up.Filename).
		Int("rows", len(table.Rows)).
		Strs("payment_methods", table.PaymentMethods).
		Msg("Upload staged")

	apphttp.WriteJSON(w, http.StatusCreated, up)
}

func handleGet(w http.ResponseWriter, r *http.Request) {
	up, ok := staged.Get(chi.URLParam(r, "id"))
	if !ok {
		uploadNotFound(w, r)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, up)
}

func handleEditRow(w http.ResponseWriter, r *http.Request) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || row < 0 {
		apphttp.ErrorResponse(w, r, "Row must be a non-negative integer", http.StatusBadRequest)
		return
	}

	var cells map[string]string
	if err := apphttp.DecodeJSON(r, &cells); err != nil {
		apphttp.Error(w, r, err)
		return
	}

	up, found, err := staged.Update(chi.URLParam(r, "id"), func(up *models.StagedUpload) (*models.StagedUpload, error) {
		return editRow(up, row, cells)
	})
	if !found {
		uploadNotFound(w, r)
		return
	}
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, up)
}

func handleDiscard(w http.ResponseWriter, r *http.Request) {
	staged.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func handleCommit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := staged.Get(id); !ok {
		uploadNotFound(w, r)
		return
	}

	var req CommitRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil && !errors.Is(err, apphttp.ErrEmptyBody) {
		apphttp.Error(w, r, err)
		return
	}
	if req.Date == "" {
		req.Date = now().Format(models.DateLayout)
	}
	if _, err := apphttp.ParseDate("date", req.Date); err != nil {
		apphttp.Error(w, r, err)
		return
	}

	// Take so that a concurrent commit of the same upload finds nothing
	up, ok := staged.Take(id)
	if !ok {
		uploadNotFound(w, r)
		return
	}

	batch := dataloader.ToTransactions(up.Table, req.Date, dataloader.NewID)
	if err := store.Add(r.Context(), batch); err != nil {
		staged.Set(id, up)
		apphttp.Error(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("upload", id).
		Str("date", req.Date).
		Int("added", len(batch)).
		Msg("Upload committed")

	apphttp.WriteJSON(w, http.StatusCreated, CommitResponse{
		Added:        len(batch),
		Date:         req.Date,
		Transactions: batch,
	})
}

// editRow returns a copy of up with the cells of one row replaced. Amount columns
// are normalized the way they will be read at commit time.
func editRow(up *models.StagedUpload, row int, cells map[string]string) (*models.StagedUpload, error) {
	if row >= len(up.Table.Rows) {
		return nil, fmt.Errorf("%w: row %d out of range (upload has %d rows)", apphttp.ErrBadRequest, row, len(up.Table.Rows))
	}
	for col := range cells {
		if col == "" || !up.Table.HasColumn(col) {
			return nil, fmt.Errorf("%w: unknown column %q", apphttp.ErrBadRequest, col)
		}
	}

	edited := make(models.Row, len(up.Table.Rows[row]))
	for k, v := range up.Table.Rows[row] {
		edited[k] = v
	}
	for col, value := range cells {
		if col == models.ColumnParticulars {
			edited[col] = value
		} else {
			edited[col] = dataloader.ParseAmount(value).String()
		}
	}

	rows := make([]models.Row, len(up.Table.Rows))
	copy(rows, up.Table.Rows)
	rows[row] = edited

	table := models.NewUploadedTable(up.Table.Columns, rows)
	next := *up
	next.Table = table
	next.RowTypes = dataloader.PreviewTypes(table)
	return &next, nil
}

func uploadNotFound(w http.ResponseWriter, r *http.Request) {
	apphttp.ErrorResponse(w, r, "Upload not found or expired", http.StatusNotFound)
}
