package repository

import "context"

// Cache instance identifiers understood by the media cache manager. They
// name the blob cache prefixes whose size cap the manager enforces.
const (
	CacheInstanceContent  = "content"
	CacheInstancePreviews = "previews"
)

// ActiveCacheInstances returns the cache instances the verifier asks the
// manager to rebalance after a network fetch.
func ActiveCacheInstances() []string {
	return []string{CacheInstanceContent, CacheInstancePreviews}
}

// CacheBridge is the inter-process bridge to the wallet's media cache
// manager, which runs in a separate process and owns cache eviction.
// Implementations should be provided by the infrastructure layer (e.g., NATS).
type CacheBridge interface {
	// AdjustCacheLimit asks the manager to re-enforce its size cap across
	// the given cache instances. Fire-and-forget: delivery is best effort.
	AdjustCacheLimit(ctx context.Context, instances []string) error

	// ResolveSVGContent resolves a persisted cache reference to renderable
	// SVG markup. Request/response.
	ResolveSVGContent(ctx context.Context, ref string) (string, error)
}
