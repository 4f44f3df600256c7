package storage

import (
	"context"
	"fmt"
	"io"
)

// Options selects and configures a blob backend
type Options struct {
	Backend       string
	DataDir       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Encryptor is implemented by backends that support encryption at rest
type Encryptor interface {
	IsEncrypted() bool
	IsUnlocked() bool
	Unlock(password string) error
	Lock()
	EnableEncryption(password string) error
	DisableEncryption(password string) error
}

var _ Encryptor = (*FileStore)(nil)

var (
	_ BlobStore = (*FileStore)(nil)
	_ BlobStore = (*SQLiteStore)(nil)
	_ BlobStore = (*RedisStore)(nil)
)

// Open builds the backend named by opts.Backend; an empty name means file
func Open(ctx context.Context, opts Options) (BlobStore, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.DataDir)
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Close releases backend resources when the store holds any
func Close(store BlobStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
