package usecase

import (
	"context"
	"io"
	"sync"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
)

// mockFetcher provides a configurable mock for ContentFetcher. Every
// request is recorded so tests can assert candidate order and counts.
type mockFetcher struct {
	fetchFn func(ctx context.Context, req repository.FetchRequest) (repository.FetchResult, error)

	mu       sync.Mutex
	requests []repository.FetchRequest
}

func (m *mockFetcher) Fetch(ctx context.Context, req repository.FetchRequest) (repository.FetchResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.fetchFn != nil {
		return m.fetchFn(ctx, req)
	}
	return repository.FetchResult{}, nil
}

// recorded returns a copy of the fetch requests seen so far.
func (m *mockFetcher) recorded() []repository.FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.FetchRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *mockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockCacheStore provides an in-memory MediaCacheStore. Func fields
// override individual operations when set.
type mockCacheStore struct {
	getThumbnailFn   func(ctx context.Context, nftID string) (*repository.ThumbnailCacheEntry, error)
	setThumbnailFn   func(ctx context.Context, nftID string, entry repository.ThumbnailCacheEntry) error
	getContentFn     func(ctx context.Context, nftID string) (*repository.ContentCacheEntry, error)
	setContentFn     func(ctx context.Context, nftID string, entry repository.ContentCacheEntry) error
	forceReloadFn    func(ctx context.Context, nftID string) (bool, error)
	setForceReloadFn func(ctx context.Context, nftID string, v bool) error

	mu       sync.Mutex
	thumbs   map[string]repository.ThumbnailCacheEntry
	contents map[string]repository.ContentCacheEntry
	reloads  map[string]bool
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{
		thumbs:   make(map[string]repository.ThumbnailCacheEntry),
		contents: make(map[string]repository.ContentCacheEntry),
		reloads:  make(map[string]bool),
	}
}

func (m *mockCacheStore) GetThumbnail(ctx context.Context, nftID string) (*repository.ThumbnailCacheEntry, error) {
	if m.getThumbnailFn != nil {
		return m.getThumbnailFn(ctx, nftID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.thumbs[nftID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *mockCacheStore) SetThumbnail(ctx context.Context, nftID string, entry repository.ThumbnailCacheEntry) error {
	if m.setThumbnailFn != nil {
		return m.setThumbnailFn(ctx, nftID, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thumbs[nftID] = entry
	return nil
}

func (m *mockCacheStore) GetContent(ctx context.Context, nftID string) (*repository.ContentCacheEntry, error) {
	if m.getContentFn != nil {
		return m.getContentFn(ctx, nftID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.contents[nftID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *mockCacheStore) SetContent(ctx context.Context, nftID string, entry repository.ContentCacheEntry) error {
	if m.setContentFn != nil {
		return m.setContentFn(ctx, nftID, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[nftID] = entry
	return nil
}

func (m *mockCacheStore) ForceReload(ctx context.Context, nftID string) (bool, error) {
	if m.forceReloadFn != nil {
		return m.forceReloadFn(ctx, nftID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads[nftID], nil
}

func (m *mockCacheStore) SetForceReload(ctx context.Context, nftID string, v bool) error {
	if m.setForceReloadFn != nil {
		return m.setForceReloadFn(ctx, nftID, v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads[nftID] = v
	return nil
}

// content returns the stored content entry, or nil.
func (m *mockCacheStore) content(nftID string) *repository.ContentCacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.contents[nftID]
	if !ok {
		return nil
	}
	return &entry
}

// thumbnail returns the stored thumbnail entry, or nil.
func (m *mockCacheStore) thumbnail(nftID string) *repository.ThumbnailCacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.thumbs[nftID]
	if !ok {
		return nil
	}
	return &entry
}

// mockBridge provides a configurable mock for CacheBridge.
type mockBridge struct {
	adjustFn     func(ctx context.Context, instances []string) error
	resolveSVGFn func(ctx context.Context, ref string) (string, error)

	mu           sync.Mutex
	adjustCalls  int
	resolvedRefs []string
}

func (m *mockBridge) AdjustCacheLimit(ctx context.Context, instances []string) error {
	m.mu.Lock()
	m.adjustCalls++
	m.mu.Unlock()

	if m.adjustFn != nil {
		return m.adjustFn(ctx, instances)
	}
	return nil
}

func (m *mockBridge) ResolveSVGContent(ctx context.Context, ref string) (string, error) {
	m.mu.Lock()
	m.resolvedRefs = append(m.resolvedRefs, ref)
	m.mu.Unlock()

	if m.resolveSVGFn != nil {
		return m.resolveSVGFn(ctx, ref)
	}
	return "", nil
}

func (m *mockBridge) adjustments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustCalls
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishFn func(ctx context.Context, task repository.VerificationTask) error
	consumeFn func(ctx context.Context, handler func(task repository.VerificationTask) error) error

	mu        sync.Mutex
	published []repository.VerificationTask
}

func (m *mockMessageQueue) PublishVerificationTask(ctx context.Context, task repository.VerificationTask) error {
	m.mu.Lock()
	m.published = append(m.published, task)
	m.mu.Unlock()

	if m.publishFn != nil {
		return m.publishFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeVerificationTasks(ctx context.Context, handler func(task repository.VerificationTask) error) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

func (m *mockMessageQueue) publishedTasks() []repository.VerificationTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.VerificationTask, len(m.published))
	copy(out, m.published)
	return out
}

// mockNFTRepository provides a configurable mock for NFTRepository.
type mockNFTRepository struct {
	upsertFn  func(ctx context.Context, nft *model.NFT) error
	getByIDFn func(ctx context.Context, id string) (*model.NFT, error)
	listFn    func(ctx context.Context, limit, offset int) ([]*model.NFT, error)
}

func (m *mockNFTRepository) Upsert(ctx context.Context, nft *model.NFT) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, nft)
	}
	return nil
}

func (m *mockNFTRepository) GetByID(ctx context.Context, id string) (*model.NFT, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockNFTRepository) List(ctx context.Context, limit, offset int) ([]*model.NFT, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
// Deletions are recorded for eviction assertions.
type mockObjectStorage struct {
	uploadFn   func(ctx context.Context, key string, reader io.Reader, contentType string) error
	downloadFn func(ctx context.Context, key string) (io.ReadCloser, error)
	existsFn   func(ctx context.Context, key string) (bool, error)
	statFn     func(ctx context.Context, key string) (repository.ObjectInfo, error)
	deleteFn   func(ctx context.Context, key string) error
	listFn     func(ctx context.Context, prefix string) ([]repository.ObjectInfo, error)

	mu      sync.Mutex
	deleted []string
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockObjectStorage) Stat(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if m.statFn != nil {
		return m.statFn(ctx, key)
	}
	return repository.ObjectInfo{}, repository.ErrObjectNotFound
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()

	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) List(ctx context.Context, prefix string) ([]repository.ObjectInfo, error) {
	if m.listFn != nil {
		return m.listFn(ctx, prefix)
	}
	return nil, nil
}

func (m *mockObjectStorage) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}
