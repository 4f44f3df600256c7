package backup

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apphttp "daybook/internal/http"
	"daybook/internal/logger"
	"daybook/internal/services/storage"
	"daybook/internal/services/txstore"
	"daybook/internal/version"
)

// entryName is the file holding the transaction list inside a backup archive
const entryName = txstore.BlobName + ".json"

var errNoEncryption = fmt.Errorf("%w: encryption is only available with file storage", apphttp.ErrBadRequest)

var (
	store     *txstore.Store
	encryptor storage.Encryptor
	maxBytes  int64
	now       = time.Now
)

// Initialize sets up the backup package. enc may be nil when the backend cannot encrypt.
func Initialize(s *txstore.Store, enc storage.Encryptor, maxUploadBytes int64) {
	store = s
	encryptor = enc
	maxBytes = maxUploadBytes
}

// RegisterRoutes registers health, backup and storage routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/health", HandleHealth)
	r.Get("/api/version", HandleVersion)
	r.Group(func(r chi.Router) {
		r.Use(apphttp.RequireUnlocked(func() bool { return store.Locked() }))
		r.Get("/backup", HandleBackup)
		r.Post("/restore", HandleRestore)
	})
	r.Get("/storage", HandleStorageStatus)
	r.Post("/storage/encrypt", HandleEncrypt)
	r.Post("/storage/decrypt", HandleDecrypt)
	r.Post("/storage/unlock", HandleUnlock)
	r.Post("/storage/lock", HandleLock)
}

// PasswordRequest carries the passphrase for the storage endpoints
type PasswordRequest struct {
	Password string `json:"password"`
}

// StorageStatus reports the encryption state of the backend
type StorageStatus struct {
	Encryptable bool `json:"encryptable"`
	Encrypted   bool `json:"encrypted"`
	Unlocked    bool `json:"unlocked"`
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func HandleVersion(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, version.Get())
}

func HandleBackup(w http.ResponseWriter, r *http.Request) {
	data, err := store.Backup()
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}

	// Build the archive in memory so errors can still be reported
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: now(),
	})
	if err == nil {
		_, err = f.Write(data)
	}
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		apphttp.Error(w, r, fmt.Errorf("create backup: %w", err))
		return
	}

	filename := fmt.Sprintf("daybook_backup_%s.zip", now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func HandleRestore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		apphttp.ErrorResponse(w, r, "File too large or not a multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apphttp.ErrorResponse(w, r, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		apphttp.ErrorResponse(w, r, "Error reading file", http.StatusBadRequest)
		return
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".zip":
		data, err = readArchive(content)
		if err != nil {
			apphttp.Error(w, r, err)
			return
		}
	case ".json":
		data = content
	default:
		apphttp.ErrorResponse(w, r, "Only ZIP or JSON backup files are allowed", http.StatusBadRequest)
		return
	}

	if err := store.Restore(r.Context(), data); err != nil {
		apphttp.Error(w, r, err)
		return
	}

	count := len(store.Snapshot())
	log := logger.FromContext(r.Context())
	log.Info().Int("transactions", count).Msg("Restore complete")
	apphttp.WriteJSON(w, http.StatusOK, map[string]int{"restored": count})
}

// readArchive returns the transaction list stored in a backup zip
func readArchive(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ZIP file", apphttp.ErrBadRequest)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || filepath.Base(f.Name) != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", apphttp.ErrBadRequest, f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxBytes))
	}
	return nil, fmt.Errorf("%w: no %s in backup", apphttp.ErrBadRequest, entryName)
}

func HandleStorageStatus(w http.ResponseWriter, r *http.Request) {
	status := StorageStatus{Unlocked: true}
	if encryptor != nil {
		status.Encryptable = true
		status.Encrypted = encryptor.IsEncrypted()
		status.Unlocked = encryptor.IsUnlocked()
	}
	apphttp.WriteJSON(w, http.StatusOK, status)
}

func HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	withPassword(w, r, func(password string) error {
		return encryptor.EnableEncryption(password)
	}, "Storage encryption enabled")
}

func HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	withPassword(w, r, func(password string) error {
		return encryptor.DisableEncryption(password)
	}, "Storage encryption disabled")
}

func HandleUnlock(w http.ResponseWriter, r *http.Request) {
	withPassword(w, r, func(password string) error {
		if err := encryptor.Unlock(password); err != nil {
			return err
		}
		return store.Reload(r.Context())
	}, "Storage unlocked")
}

func HandleLock(w http.ResponseWriter, r *http.Request) {
	if encryptor == nil {
		apphttp.Error(w, r, errNoEncryption)
		return
	}
	encryptor.Lock()
	if !encryptor.IsUnlocked() {
		store.Lock()
	}
	log := logger.FromContext(r.Context())
	log.Info().Msg("Storage locked")
	HandleStorageStatus(w, r)
}

// withPassword decodes a PasswordRequest, runs fn and answers with the storage status
func withPassword(w http.ResponseWriter, r *http.Request, fn func(string) error, done string) {
	if encryptor == nil {
		apphttp.Error(w, r, errNoEncryption)
		return
	}

	var req PasswordRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		apphttp.Error(w, r, err)
		return
	}
	if req.Password == "" {
		apphttp.ErrorResponse(w, r, "Password is required", http.StatusBadRequest)
		return
	}

	if err := fn(req.Password); err != nil {
		apphttp.Error(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Msg(done)
	HandleStorageStatus(w, r)
}
