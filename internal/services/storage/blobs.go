// Package storage persists named blobs. The transaction store keeps its whole
// state in one blob and rewrites it after every mutation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrBlobNotFound is returned by Get when no blob has the requested name
	ErrBlobNotFound = errors.New("blob not found")
	// ErrLocked is returned when encrypted data is read or written before Unlock
	ErrLocked = errors.New("storage is encrypted and locked")
)

// validName keeps blob names safe to use as file names and cache keys
var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// BlobStore reads and writes whole named blobs
//
//go:generate mockgen -destination=../txstore/mocks/mock_blobstore.go -package=mocks daybook/internal/services/storage BlobStore
type BlobStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || !validName.MatchString(name) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
