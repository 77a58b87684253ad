// Package docstore is the single entry point for storing and retrieving
// raw EPD source documents. Backend selection is env driven; the rest of
// the codebase imports this package, never the adapters directly.
package docstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"epdcore/internal/docstore/core"
	fsstore "epdcore/internal/infra/docstore/fs"
	memorystore "epdcore/internal/infra/docstore/memory"
	s3store "epdcore/internal/infra/docstore/s3"
)

// Re-exported contract types so callers depend on one import path.
type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var ErrUnsupported = core.ErrUnsupported

const (
	envDriver = "EPDCORE_DOCS_DRIVER"
	envFSRoot = "EPDCORE_DOCS_FS_ROOT"
)

// NewFilesystem returns a document store rooted at dir.
func NewFilesystem(dir string) (Store, error) { return fsstore.New(dir) }

// NewMemory returns an ephemeral in-memory document store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a document store backed by an S3-compatible bucket.
func NewS3(ctx context.Context, cfg s3store.Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// Open selects a backend from EPDCORE_DOCS_DRIVER (fs, s3, memory).
// The default is the filesystem store so a fresh checkout works with no
// configuration.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(envDriver)))
	switch Driver(driver) {
	case DriverFilesystem, "":
		return NewFilesystem(os.Getenv(envFSRoot))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported docs driver %q (expected fs, s3 or memory)", driver)
	}
}

// ReadDocument fetches a document and returns its full contents.
func ReadDocument(ctx context.Context, s Store, key string) ([]byte, error) {
	_, rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return data, nil
}
