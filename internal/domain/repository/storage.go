package repository

import (
	"context"
	"io"
	"strings"
	"time"
)

// NormalizeHash canonicalizes a declared hex digest: lowercased, trimmed,
// any 0x prefix stripped. On-chain declarations then compare equal to
// computed hex digests and derive stable blob keys.
func NormalizeHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "0x")
}

// ContentKey returns the blob cache key holding verified content bytes.
func ContentKey(hash string) string {
	return CacheInstanceContent + "/" + NormalizeHash(hash)
}

// PreviewKey returns the blob cache key holding the downscaled preview
// rendition of verified image content.
func PreviewKey(hash string) string {
	return CacheInstancePreviews + "/" + NormalizeHash(hash) + ".png"
}

// ObjectInfo contains metadata about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectStorage defines the interface for the content-addressed blob
// cache backing the fetcher. Verified media bytes live under
// "content/{hash}" keys, generated previews under "previews/{hash}".
// Implementations should be provided by the infrastructure layer (e.g., MinIO).
type ObjectStorage interface {
	// Upload stores a blob.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Download retrieves a blob. Caller is responsible for closing the
	// returned ReadCloser. Returns ErrObjectNotFound for missing keys.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether a blob is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Stat returns blob metadata. Returns ErrObjectNotFound for missing keys.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes a blob.
	Delete(ctx context.Context, key string) error

	// List returns metadata for every blob under the prefix.
	// Used by the cache manager to enforce size caps.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
