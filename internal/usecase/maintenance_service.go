package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
)

var (
	// ErrUnknownContentRef is returned when a cache reference does not name
	// a registered NFT's primary content.
	ErrUnknownContentRef = errors.New("cache reference does not name registered content")
)

// MaintenanceConfig holds configuration for MaintenanceService.
type MaintenanceConfig struct {
	// MaxCacheBytes caps the total size of each blob cache instance.
	// Default: 1073741824 (1 GiB)
	MaxCacheBytes int64
}

// DefaultMaintenanceConfig returns the default configuration.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		MaxCacheBytes: 1 << 30,
	}
}

// MaintenanceService owns the cache manager duties served over the
// bridge: size-cap enforcement for the blob cache instances and SVG
// content resolution for persisted cache references.
type MaintenanceService interface {
	// EnforceCacheLimit deletes the oldest blobs of each instance until
	// the instance fits the configured byte cap.
	EnforceCacheLimit(ctx context.Context, instances []string) error

	// ResolveSVG resolves a persisted cache reference to SVG markup read
	// from the blob cache.
	ResolveSVG(ctx context.Context, ref string) (string, error)
}

type maintenanceService struct {
	repo    repository.NFTRepository
	storage repository.ObjectStorage

	maxCacheBytes int64
}

// NewMaintenanceService creates a new MaintenanceService instance.
func NewMaintenanceService(
	repo repository.NFTRepository,
	storage repository.ObjectStorage,
	cfg MaintenanceConfig,
) MaintenanceService {
	return &maintenanceService{
		repo:          repo,
		storage:       storage,
		maxCacheBytes: cfg.MaxCacheBytes,
	}
}

// EnforceCacheLimit evicts oldest-first until each instance fits the cap.
func (s *maintenanceService) EnforceCacheLimit(ctx context.Context, instances []string) error {
	for _, instance := range instances {
		if err := s.enforceInstanceLimit(ctx, instance); err != nil {
			return fmt.Errorf("enforce limit for %s: %w", instance, err)
		}
	}
	return nil
}

func (s *maintenanceService) enforceInstanceLimit(ctx context.Context, instance string) error {
	objects, err := s.storage.List(ctx, instance+"/")
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	var total int64
	for _, obj := range objects {
		total += obj.Size
	}
	if total <= s.maxCacheBytes {
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.Before(objects[j].LastModified)
	})

	for _, obj := range objects {
		if total <= s.maxCacheBytes {
			break
		}
		if err := s.storage.Delete(ctx, obj.Key); err != nil {
			// A blob that cannot be deleted keeps counting against the
			// cap; move on so one stuck object does not block eviction.
			slog.Warn("failed to evict blob",
				"instance", instance,
				"key", obj.Key,
				"error", err,
			)
			continue
		}
		total -= obj.Size

		slog.Info("evicted blob",
			"instance", instance,
			"key", obj.Key,
			"size", obj.Size,
		)
	}

	return nil
}

// ResolveSVG resolves a persisted cache reference to SVG markup. The
// reference must name a registered NFT's primary content; the bytes are
// read from the content blob the verifier stored.
func (s *maintenanceService) ResolveSVG(ctx context.Context, ref string) (string, error) {
	decoded, err := model.DecodeCacheRef(ref)
	if err != nil {
		return "", err
	}

	nftID, uri := model.SplitCacheRef(decoded)
	if nftID == "" || uri == "" {
		return "", ErrUnknownContentRef
	}

	nft, err := s.repo.GetByID(ctx, nftID)
	if err != nil {
		return "", fmt.Errorf("look up nft: %w", err)
	}
	if nft.DataURI != uri {
		return "", ErrUnknownContentRef
	}

	reader, err := s.storage.Download(ctx, repository.ContentKey(nft.DataHash))
	if err != nil {
		return "", fmt.Errorf("read content blob: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read content blob: %w", err)
	}

	return string(data), nil
}

// Compile-time verification that maintenanceService implements MaintenanceService.
var _ MaintenanceService = (*maintenanceService)(nil)
