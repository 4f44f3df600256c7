// Package http holds the JSON response, error mapping and request parsing helpers
// shared by every handler package.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"daybook/internal/logger"
	"daybook/internal/models"
	"daybook/internal/services/dataloader"
	"daybook/internal/services/export"
	"daybook/internal/services/storage"
	"daybook/internal/services/txstore"
)

// StatusLocked is returned while encrypted storage has not been unlocked
const StatusLocked = http.StatusLocked

var (
	// ErrBadRequest marks request-shape problems found by the helpers in this package
	ErrBadRequest = errors.New("bad request")
	// ErrEmptyBody is returned by DecodeJSON when the request has no body at all
	ErrEmptyBody = fmt.Errorf("%w: empty body", ErrBadRequest)
)

// badRequest lists every sentinel that means the caller sent something unusable
var badRequest = []error{
	ErrBadRequest,
	txstore.ErrInvalidAmount,
	txstore.ErrInvalidDate,
	txstore.ErrDuplicateID,
	txstore.ErrInvalidData,
	dataloader.ErrEmptySheet,
	dataloader.ErrUnsupportedFormat,
	export.ErrUnknownFormat,
	storage.ErrWrongPassword,
	storage.ErrPasswordTooShort,
	storage.ErrAlreadyEncrypted,
	storage.ErrNotEncrypted,
}

// StatusFor maps an error to the HTTP status it should produce
func StatusFor(err error) int {
	switch {
	case errors.Is(err, txstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrLocked):
		return StatusLocked
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// WriteJSON sends v as a JSON body with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, so an encode failure has nowhere to go
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse sends a JSON error body and logs it on the request logger
func ErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	log := logger.FromContext(r.Context())
	ev := log.Warn()
	if statusCode >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Int("status", statusCode).Str("path", r.URL.Path).Msg(message)

	WriteJSON(w, statusCode, map[string]string{"error": message})
}

// Error sends err with the status StatusFor picks
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, err.Error(), StatusFor(err))
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	return nil
}

// ParseDate validates an optional YYYY-MM-DD query value
func ParseDate(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return "", fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadRequest, name)
	}
	return value, nil
}

// ParseFilter reads start, end, particulars and limit from the query string
func ParseFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()

	start, err := ParseDate("start", q.Get("start"))
	if err != nil {
		return models.TransactionFilter{}, err
	}
	end, err := ParseDate("end", q.Get("end"))
	if err != nil {
		return models.TransactionFilter{}, err
	}

	f := models.TransactionFilter{
		StartDate:   start,
		EndDate:     end,
		Particulars: q.Get("particulars"),
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return models.TransactionFilter{}, fmt.Errorf("%w: limit must be a non-negative integer", ErrBadRequest)
		}
		f.Limit = n
	}
	return f, nil
}

// RequestLogger puts a request-scoped logger in the context and logs each response
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), log)))

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("request")
		})
	}
}

// RequireUnlocked answers 423 without calling next while locked reports true
func RequireUnlocked(locked func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if locked() {
				Error(w, r, storage.ErrLocked)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
