package repository

import (
	"context"
	"time"
)

// ThumbnailCacheEntry is the persisted "thumb-cache-{id}" slot. Video and
// Image hold opaque encoded references produced by model.EncodeCacheRef.
// A present reference is authoritative: the verifier adopts it without
// re-fetching.
type ThumbnailCacheEntry struct {
	Video string    `json:"video,omitempty"`
	Image string    `json:"image,omitempty"`
	Time  time.Time `json:"time"`
}

// ContentCacheEntry is the persisted "content-cache-{id}" slot for the
// NFT's binary content. Binary is empty when the last fetch was served
// over the network rather than from the blob cache.
type ContentCacheEntry struct {
	Binary   string    `json:"binary,omitempty"`
	Valid    bool      `json:"valid"`
	Encoding string    `json:"encoding,omitempty"`
	Time     time.Time `json:"time"`
}

// MediaCacheStore persists the per-NFT verification slots across wallet
// sessions: one thumbnail entry, one content entry, and a force-reload
// signal used only to re-trigger verification.
// Get methods return nil, nil on a miss.
type MediaCacheStore interface {
	GetThumbnail(ctx context.Context, nftID string) (*ThumbnailCacheEntry, error)
	SetThumbnail(ctx context.Context, nftID string, entry ThumbnailCacheEntry) error

	GetContent(ctx context.Context, nftID string) (*ContentCacheEntry, error)
	SetContent(ctx context.Context, nftID string, entry ContentCacheEntry) error

	ForceReload(ctx context.Context, nftID string) (bool, error)
	SetForceReload(ctx context.Context, nftID string, v bool) error
}
