package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
)

const (
	// defaultListLimit applies when a caller does not page explicitly.
	defaultListLimit = 50
	// maxListLimit caps a single registry page.
	maxListLimit = 200
)

// RegisterNFTInput contains the input parameters for registering an NFT.
type RegisterNFTInput struct {
	ID       string
	Name     string
	DataURI  string
	DataHash string
	Metadata json.RawMessage
}

// NFTService defines the registry and task operations around verification.
type NFTService interface {
	// RegisterNFT creates or replaces a registry record. Wallet syncs are
	// idempotent.
	RegisterNFT(ctx context.Context, input RegisterNFTInput) (*model.NFT, error)

	// GetNFT retrieves a registry record by NFT identifier.
	GetNFT(ctx context.Context, id string) (*model.NFT, error)

	// ListNFTs returns registry records ordered by last update, newest first.
	ListNFTs(ctx context.Context, limit, offset int) ([]*model.NFT, error)

	// RequestVerification enqueues a background force-validate pass and
	// returns the task identifier.
	RequestVerification(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error)

	// RequestReload flips the NFT's force-reload signal and enqueues a
	// re-verification. The signal participates in the triggering
	// contract's dependency key by value, so each reload toggles it to
	// guarantee a key change.
	RequestReload(ctx context.Context, nftID string) (uuid.UUID, error)
}

type nftService struct {
	repo  repository.NFTRepository
	cache repository.MediaCacheStore
	queue repository.MessageQueue
}

// NewNFTService creates a new NFTService instance.
func NewNFTService(
	repo repository.NFTRepository,
	cache repository.MediaCacheStore,
	queue repository.MessageQueue,
) NFTService {
	return &nftService{
		repo:  repo,
		cache: cache,
		queue: queue,
	}
}

// RegisterNFT validates and persists a registry record.
func (s *nftService) RegisterNFT(ctx context.Context, input RegisterNFTInput) (*model.NFT, error) {
	nft, err := model.NewNFT(input.ID, input.Name, input.DataURI, input.DataHash, input.Metadata)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, nft); err != nil {
		return nil, fmt.Errorf("upsert nft: %w", err)
	}

	return nft, nil
}

// GetNFT retrieves a registry record by NFT identifier.
func (s *nftService) GetNFT(ctx context.Context, id string) (*model.NFT, error) {
	return s.repo.GetByID(ctx, id)
}

// ListNFTs returns registry records, newest first.
func (s *nftService) ListNFTs(ctx context.Context, limit, offset int) ([]*model.NFT, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// RequestVerification enqueues a background force-validate pass.
func (s *nftService) RequestVerification(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error) {
	if _, err := s.repo.GetByID(ctx, nftID); err != nil {
		return uuid.Nil, err
	}

	task := repository.VerificationTask{
		TaskID:          uuid.New(),
		NFTID:           nftID,
		ForceValidate:   true,
		IgnoreSizeLimit: ignoreSizeLimit,
	}

	if err := s.queue.PublishVerificationTask(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("publish verification task: %w", err)
	}

	return task.TaskID, nil
}

// RequestReload flips the force-reload signal and enqueues a re-verification.
func (s *nftService) RequestReload(ctx context.Context, nftID string) (uuid.UUID, error) {
	if _, err := s.repo.GetByID(ctx, nftID); err != nil {
		return uuid.Nil, err
	}

	current, err := s.cache.ForceReload(ctx, nftID)
	if err != nil {
		slog.Warn("force-reload read failed, treating as unset",
			"nft_id", nftID,
			"error", err,
		)
	}
	if err := s.cache.SetForceReload(ctx, nftID, !current); err != nil {
		return uuid.Nil, fmt.Errorf("set force-reload signal: %w", err)
	}

	task := repository.VerificationTask{
		TaskID:        uuid.New(),
		NFTID:         nftID,
		ForceValidate: true,
	}

	if err := s.queue.PublishVerificationTask(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("publish verification task: %w", err)
	}

	return task.TaskID, nil
}

// Compile-time verification that nftService implements NFTService.
var _ NFTService = (*nftService)(nil)
