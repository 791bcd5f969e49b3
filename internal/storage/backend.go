package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Backend stores benchmark artifacts (results tables and rendered charts).
// Paths are slash-separated keys relative to the backend root.
type Backend interface {
	// Write replaces the object at path with data in one operation
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the full contents of the object at path
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists checks if an object exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// Close closes any resources held by the backend
	Close() error

	// Type returns the storage type identifier ("local", "s3", "azure")
	Type() string

	// URI returns a human-readable location for path, used in logs and history
	URI(path string) string
}

// Config selects and configures a backend
type Config struct {
	Backend   string // local, s3, azure
	LocalPath string

	S3    S3Config
	Azure AzureBlobConfig
}

// New creates the configured backend
func New(cfg *Config, logger zerolog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalBackend(cfg.LocalPath, logger)
	case "s3", "minio":
		return NewS3Backend(&cfg.S3, logger)
	case "azure", "azblob":
		return NewAzureBlobBackend(&cfg.Azure, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected local, s3 or azure)", cfg.Backend)
	}
}

// contentType picks a MIME type from the artifact extension
func contentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return "text/csv"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".parquet"):
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
