package repository

import (
	"context"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
)

// NFTRepository defines the interface for the wallet's NFT registry.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type NFTRepository interface {
	// Upsert creates or replaces a registry record. The wallet re-syncs
	// records whenever chain state changes, so writes are idempotent.
	Upsert(ctx context.Context, nft *model.NFT) error

	// GetByID retrieves a record by NFT identifier.
	// Returns nil and ErrNFTNotFound if the record does not exist.
	GetByID(ctx context.Context, id string) (*model.NFT, error)

	// List returns registry records ordered by last update, newest first.
	List(ctx context.Context, limit, offset int) ([]*model.NFT, error)
}
