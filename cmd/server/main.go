package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"daybook/internal/cache"
	"daybook/internal/config"
	"daybook/internal/handlers/backup"
	"daybook/internal/handlers/customers"
	"daybook/internal/handlers/dashboard"
	"daybook/internal/handlers/transactions"
	"daybook/internal/handlers/upload"
	apphttp "daybook/internal/http"
	"daybook/internal/logger"
	"daybook/internal/models"
	"daybook/internal/services/metrics"
	"daybook/internal/services/storage"
	"daybook/internal/services/txstore"
	"daybook/internal/version"
)

var (
	cfg    *config.Config
	log    zerolog.Logger
	blobs  storage.BlobStore
	store  *txstore.Store
	staged *cache.LRU[*models.StagedUpload]
)

// errNoPassword is returned when encrypted storage is locked and nobody can type a password
var errNoPassword = errors.New("storage is encrypted: set DAYBOOK_PASSWORD or run from a terminal")

func main() {
	cfg = config.Load()
	log = logger.New(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	info := version.Get()
	log.Info().Str("version", info.String()).Msg("Starting daybook")
	if warning := info.Warning(); warning != "" {
		log.Warn().Msg(warning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	blobs, err = OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage).Msg("Failed to open storage")
	}
	defer storage.Close(blobs)

	if err := unlock(blobs, cfg.Password); err != nil {
		log.Fatal().Err(err).Msg("Failed to unlock storage")
	}

	if err := SetupDependencies(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up dependencies")
	}

	go staged.Janitor(ctx, time.Minute, func(n int) {
		log.Debug().Int("expired", n).Msg("Dropped expired uploads")
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      SetupRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("storage", cfg.Storage).
			Str("data_dir", cfg.DataDirectory).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}

// OpenStorage opens the blob backend selected by the configuration
func OpenStorage(ctx context.Context, c *config.Config) (storage.BlobStore, error) {
	return storage.Open(ctx, storage.Options{
		Backend:       c.Storage,
		DataDir:       c.DataDirectory,
		SQLitePath:    c.SQLitePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	})
}

// unlock opens encrypted storage with the configured password, prompting when none is set
func unlock(b storage.BlobStore, password string) error {
	enc, ok := b.(storage.Encryptor)
	if !ok || !enc.IsEncrypted() || enc.IsUnlocked() {
		return nil
	}

	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errNoPassword
		}
		fmt.Fprint(os.Stderr, "Storage password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	return enc.Unlock(password)
}

// SetupDependencies loads the transaction store from the opened backend and wires the handlers.
// blobs must be set (and unlocked) before it is called.
func SetupDependencies(ctx context.Context, c *config.Config) error {
	cfg = c

	var err error
	store, err = txstore.Open(ctx, blobs, logger.WithComponent(log, "txstore"))
	if err != nil {
		return fmt.Errorf("open transaction store: %w", err)
	}

	staged = cache.NewLRU[*models.StagedUpload](c.MaxStagedUpload, c.UploadTTL)

	var enc storage.Encryptor
	if e, ok := blobs.(storage.Encryptor); ok {
		enc = e
	}

	upload.Initialize(store, staged, c.MaxUploadBytes())
	transactions.Initialize(store)
	customers.Initialize(store)
	dashboard.Initialize(store, metrics.New())
	backup.Initialize(store, enc, c.MaxUploadBytes())

	log.Info().Int("transactions", len(store.Snapshot())).Msg("Transaction store loaded")
	return nil
}

// SetupRouter creates and configures the chi router with all routes
func SetupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(apphttp.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})

	backup.RegisterRoutes(r)
	upload.RegisterRoutes(r)
	transactions.RegisterRoutes(r)
	dashboard.RegisterRoutes(r)
	customers.RegisterRoutes(r)

	return r
}
