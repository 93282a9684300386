// Package storage holds the raw bytes of uploaded documents behind a small
// key/value interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"docflow/pkg/config"

	"go.uber.org/zap"
)

var ErrBlobNotFound = errors.New("blob not found")

type BlobStore interface {
	// Put stores the full content of r under key. A failed Put leaves no
	// readable object behind.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is idempotent: a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.BlobConfig, logger *zap.Logger) (BlobStore, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStore(cfg.Dir, logger)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}
