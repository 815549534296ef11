// Package filestore defines the interface archive documents are written through.
//
// All providers (local directory, MinIO / S3) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
//
// Usage:
//
//	store, err := local.New(&filestore.Config{Provider: filestore.ProviderLocal, Dir: "out"})
//	if err != nil { ... }
//	defer store.Close()
//
//	info, err := store.PutObject(ctx, "", "shop.orders.json", r, size, "application/json")
package filestore

import (
	"context"
	"io"
)

// Store is the single interface all file storage providers must implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// PutObject writes size bytes from r to key inside bucket, replacing any
	// existing object, and returns the stored object's metadata.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}
