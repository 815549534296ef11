package filestore

import "time"

// ObjectInfo describes a single stored archive document.
type ObjectInfo struct {
	// Bucket is the bucket (or local subdirectory) holding the object.
	Bucket string

	// Key is the full object path within the bucket (e.g. "shop.orders-<run>.json").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "application/json").
	ContentType string

	// ETag is the object's entity tag / hash, as returned by the backend.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time
}
