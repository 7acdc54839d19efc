package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NFTRepository implements repository.NFTRepository using PostgreSQL.
type NFTRepository struct {
	db DBTX
}

// NewNFTRepository creates a new NFTRepository instance.
func NewNFTRepository(db DBTX) *NFTRepository {
	return &NFTRepository{db: db}
}

// Upsert creates or replaces a registry record. Wallet syncs replay the
// full record on every chain update, so the write is idempotent and the
// recency timestamp is stamped here.
func (r *NFTRepository) Upsert(ctx context.Context, nft *model.NFT) error {
	const query = `
		INSERT INTO nfts (id, name, data_uri, data_hash, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    data_uri = EXCLUDED.data_uri,
		    data_hash = EXCLUDED.data_hash,
		    metadata = EXCLUDED.metadata,
		    updated_at = EXCLUDED.updated_at
	`

	nft.UpdatedAt = time.Now()

	_, err := r.db.Exec(ctx, query,
		nft.ID,
		nullString(nft.Name),
		nft.DataURI,
		nft.DataHash,
		nullJSON(nft.Metadata),
		nft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert nft: %w", err)
	}

	return nil
}

// GetByID retrieves a registry record by NFT identifier.
func (r *NFTRepository) GetByID(ctx context.Context, id string) (*model.NFT, error) {
	const query = `
		SELECT id, name, data_uri, data_hash, metadata, updated_at
		FROM nfts
		WHERE id = $1
	`

	nft, err := r.scanNFT(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNFTNotFound
		}
		return nil, fmt.Errorf("failed to get nft by ID: %w", err)
	}

	return nft, nil
}

// List returns registry records ordered by last update, newest first.
func (r *NFTRepository) List(ctx context.Context, limit, offset int) ([]*model.NFT, error) {
	const query = `
		SELECT id, name, data_uri, data_hash, metadata, updated_at
		FROM nfts
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query nfts: %w", err)
	}
	defer rows.Close()

	var nfts []*model.NFT
	for rows.Next() {
		nft, err := r.scanNFT(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nft: %w", err)
		}
		nfts = append(nfts, nft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nfts: %w", err)
	}

	return nfts, nil
}

// scanNFT scans a single row into an NFT model. pgx.Rows satisfies
// pgx.Row, so both lookup paths share this.
func (r *NFTRepository) scanNFT(row pgx.Row) (*model.NFT, error) {
	var (
		nft      model.NFT
		name     *string
		metadata []byte
	)

	err := row.Scan(
		&nft.ID,
		&name,
		&nft.DataURI,
		&nft.DataHash,
		&metadata,
		&nft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if name != nil {
		nft.Name = *name
	}
	nft.Metadata = metadata

	return &nft, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON returns nil for empty documents so the column stores NULL
// rather than invalid empty JSON.
func nullJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// Compile-time verification that NFTRepository implements repository.NFTRepository.
var _ repository.NFTRepository = (*NFTRepository)(nil)
