package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

const testPassword = "testpassword123"

func TestFileStoreEncryptDecryptRoundtrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	original := []byte(`[{"id":"2024-01-01-a","particulars":"Acme","sales":100}]`)
	if err := store.Put(ctx, "ledger", original); err != nil {
		t.Fatalf("Failed to put blob: %v", err)
	}

	read, err := store.Get(ctx, "ledger")
	if err != nil {
		t.Fatalf("Failed to get blob: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch before encryption")
	}

	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	if !store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return true")
	}

	rawData, _ := os.ReadFile(filepath.Join(dir, "ledger.blob"))
	if !isAgeEncrypted(rawData) {
		t.Error("Blob should be encrypted on disk")
	}

	read, err = store.Get(ctx, "ledger")
	if err != nil {
		t.Fatalf("Failed to read encrypted blob: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch after encryption: got %q, want %q", read, original)
	}

	store.Lock()
	if store.IsUnlocked() {
		t.Error("Expected store to be locked")
	}
	if _, err := store.Get(ctx, "ledger"); !errors.Is(err, ErrLocked) {
		t.Errorf("Get while locked: got %v, want ErrLocked", err)
	}
	if err := store.Put(ctx, "ledger", original); !errors.Is(err, ErrLocked) {
		t.Errorf("Put while locked: got %v, want ErrLocked", err)
	}

	if err := store.Unlock(testPassword); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}
	read, err = store.Get(ctx, "ledger")
	if err != nil {
		t.Fatalf("Failed to read after unlock: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch after unlock")
	}

	if err := store.DisableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to disable encryption: %v", err)
	}
	if store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return false after disable")
	}

	rawData, _ = os.ReadFile(filepath.Join(dir, "ledger.blob"))
	if string(rawData) != string(original) {
		t.Errorf("Raw content mismatch after decryption")
	}
}

func TestFileStoreReopenEncrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	if err := store.Put(ctx, "ledger", []byte("[]")); err != nil {
		t.Fatalf("Failed to put blob: %v", err)
	}
	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	if !reopened.IsEncrypted() || reopened.IsUnlocked() {
		t.Fatal("Reopened store should be encrypted and locked")
	}
	if err := reopened.Unlock(testPassword); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}
	data, err := reopened.Get(ctx, "ledger")
	if err != nil || string(data) != "[]" {
		t.Errorf("Get after reopen = %q, %v", data, err)
	}
}

func TestFileStoreWrongPassword(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)

	if err := store.EnableEncryption("correctpassword"); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	store.Lock()

	if err := store.Unlock("wrongpassword"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Unlock with wrong password: got %v, want ErrWrongPassword", err)
	}
	if err := store.DisableEncryption("wrongpassword"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Disable with wrong password: got %v, want ErrWrongPassword", err)
	}
}

func TestFileStoreEncryptionStateErrors(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)

	if err := store.EnableEncryption("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: got %v", err)
	}
	if err := store.DisableEncryption(testPassword); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("disable unencrypted: got %v", err)
	}
	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	if err := store.EnableEncryption(testPassword); !errors.Is(err, ErrAlreadyEncrypted) {
		t.Errorf("enable twice: got %v", err)
	}
}

func TestFileStoreNewBlobsEncrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewFileStore(dir)

	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	content := []byte(`[{"particulars":"Beta"}]`)
	if err := store.Put(ctx, "fresh", content); err != nil {
		t.Fatalf("Failed to put blob: %v", err)
	}

	rawData, _ := os.ReadFile(filepath.Join(dir, "fresh.blob"))
	if !isAgeEncrypted(rawData) {
		t.Error("New blob should be encrypted on disk")
	}

	read, err := store.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("Failed to read new blob: %v", err)
	}
	if string(read) != string(content) {
		t.Errorf("Content mismatch: got %q, want %q", read, content)
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer store.Close()

	exerciseBlobStore(t, store)
}

func TestSQLiteStoreMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daybook.db")
	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStore(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		store.Close()
	}
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	exerciseBlobStore(t, store)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DAYBOOK_REDIS_ADDR")
	if addr == "" {
		t.Skip("DAYBOOK_REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("DAYBOOK_REDIS_DB"))

	store, err := NewRedisStore(context.Background(), addr, os.Getenv("DAYBOOK_REDIS_PASSWORD"), db)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	defer store.Close()

	exerciseBlobStore(t, store)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "tape"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestOpenDefaultsToFile(t *testing.T) {
	store, err := Open(context.Background(), Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("Open with empty backend returned %T", store)
	}
	if err := Close(store); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// exerciseBlobStore runs the behaviour every backend shares
func exerciseBlobStore(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()
	name := "contract_test_blob"

	if _, err := store.Get(ctx, name); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("Get missing: got %v, want ErrBlobNotFound", err)
	}

	if err := store.Put(ctx, name, []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, name, []byte("two")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	data, err := store.Get(ctx, name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("Get = %q, want %q", data, "two")
	}

	if err := store.Delete(ctx, name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, name); err != nil {
		t.Errorf("Delete twice should succeed: %v", err)
	}
	if _, err := store.Get(ctx, name); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Get after delete: got %v, want ErrBlobNotFound", err)
	}

	for _, bad := range []string{"", "..", "a/b", "../etc"} {
		if err := store.Put(ctx, bad, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", bad)
		}
	}
}
