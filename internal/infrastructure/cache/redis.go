// Package cache implements the persisted per-NFT media cache slots on Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aosk-dev/nftmedia/internal/domain/repository"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/metrics"
)

// Slot key formats. The entries survive wallet sessions, so no TTL is set;
// the cache manager process owns reclamation.
const (
	thumbKeyPrefix       = "thumb-cache-"
	contentKeyPrefix     = "content-cache-"
	forceReloadKeyPrefix = "force-reload-"
)

// RedisMediaCache implements repository.MediaCacheStore on Redis.
type RedisMediaCache struct {
	client *redis.Client
}

// Compile-time verification that RedisMediaCache implements MediaCacheStore.
var _ repository.MediaCacheStore = (*RedisMediaCache)(nil)

// NewRedisMediaCache creates a Redis-backed media cache store.
func NewRedisMediaCache(client *redis.Client) *RedisMediaCache {
	return &RedisMediaCache{client: client}
}

// GetThumbnail retrieves the thumbnail slot for an NFT.
// Returns nil, nil on a miss.
func (c *RedisMediaCache) GetThumbnail(ctx context.Context, nftID string) (*repository.ThumbnailCacheEntry, error) {
	var entry repository.ThumbnailCacheEntry
	ok, err := c.getJSON(ctx, thumbKeyPrefix+nftID, metrics.CacheSlotThumbnail, &entry)
	if err != nil || !ok {
		return nil, err
	}
	return &entry, nil
}

// SetThumbnail stores the thumbnail slot for an NFT.
func (c *RedisMediaCache) SetThumbnail(ctx context.Context, nftID string, entry repository.ThumbnailCacheEntry) error {
	return c.setJSON(ctx, thumbKeyPrefix+nftID, metrics.CacheSlotThumbnail, entry)
}

// GetContent retrieves the content slot for an NFT.
// Returns nil, nil on a miss.
func (c *RedisMediaCache) GetContent(ctx context.Context, nftID string) (*repository.ContentCacheEntry, error) {
	var entry repository.ContentCacheEntry
	ok, err := c.getJSON(ctx, contentKeyPrefix+nftID, metrics.CacheSlotContent, &entry)
	if err != nil || !ok {
		return nil, err
	}
	return &entry, nil
}

// SetContent stores the content slot for an NFT.
func (c *RedisMediaCache) SetContent(ctx context.Context, nftID string, entry repository.ContentCacheEntry) error {
	return c.setJSON(ctx, contentKeyPrefix+nftID, metrics.CacheSlotContent, entry)
}

// ForceReload reads the re-trigger signal for an NFT. A missing slot
// reads as false.
func (c *RedisMediaCache) ForceReload(ctx context.Context, nftID string) (bool, error) {
	val, err := c.client.Get(ctx, forceReloadKeyPrefix+nftID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheSlotForceReload, metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
			return false, nil
		}
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheSlotForceReload, metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return false, fmt.Errorf("redis get: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheSlotForceReload, metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
	return val == "1", nil
}

// SetForceReload writes the re-trigger signal for an NFT.
func (c *RedisMediaCache) SetForceReload(ctx context.Context, nftID string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	if err := c.client.Set(ctx, forceReloadKeyPrefix+nftID, val, 0).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheSlotForceReload, metrics.CacheOpSet, metrics.CacheStatusError).Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheSlotForceReload, metrics.CacheOpSet, metrics.CacheStatusSuccess).Inc()
	return nil
}

// getJSON loads and unmarshals a slot. The bool result reports a hit.
func (c *RedisMediaCache) getJSON(ctx context.Context, key, slot string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheOperationsTotal.WithLabelValues(slot, metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
			return false, nil
		}
		metrics.CacheOperationsTotal.WithLabelValues(slot, metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return false, fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(slot, metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return false, fmt.Errorf("deserialize cache entry: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(slot, metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
	return true, nil
}

func (c *RedisMediaCache) setJSON(ctx context.Context, key, slot string, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize cache entry: %w", err)
	}

	if err := c.client.Set(ctx, key, data, 0).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(slot, metrics.CacheOpSet, metrics.CacheStatusError).Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(slot, metrics.CacheOpSet, metrics.CacheStatusSuccess).Inc()
	return nil
}
