// Package fetcher implements the remote content fetch and hash
// verification collaborator on plain HTTP(S), backed by a
// content-addressed blob cache in object storage.
package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aosk-dev/nftmedia/internal/domain/repository"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/metrics"
	"github.com/aosk-dev/nftmedia/internal/preview"
)

// Config holds configuration for the HTTP fetcher.
type Config struct {
	// Timeout bounds each content download end to end.
	// Default: 30s
	Timeout time.Duration
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// HTTPFetcher implements repository.ContentFetcher. Verified bytes are
// stored content-addressed under "content/{hash}"; presence of that
// object answers later fetches for the same hash without network I/O.
type HTTPFetcher struct {
	client   *http.Client
	store    repository.ObjectStorage
	previews preview.Generator
}

// Compile-time verification that HTTPFetcher implements ContentFetcher.
var _ repository.ContentFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a new HTTP content fetcher.
func NewHTTPFetcher(cfg Config, store repository.ObjectStorage, previews preview.Generator) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		store:    store,
		previews: previews,
	}
}

// Fetch retrieves the content at req.URI and verifies its SHA-256 digest
// against the declared hash. A digest mismatch is not an error: it returns
// Valid=false. Transport failures (bad URI, connection, status, size cap)
// are returned as errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, req repository.FetchRequest) (repository.FetchResult, error) {
	expected := repository.NormalizeHash(req.ExpectedHash)

	// Content already verified under this hash is adopted without
	// touching the network.
	if expected != "" {
		info, err := f.store.Stat(ctx, repository.ContentKey(expected))
		if err == nil {
			metrics.FetchAttemptsTotal.WithLabelValues(req.Class.String(), metrics.FetchStatusValid).Inc()
			return repository.FetchResult{Valid: true, Cached: true, Encoding: info.ContentType}, nil
		}
		if !errors.Is(err, repository.ErrObjectNotFound) {
			slog.Warn("blob cache lookup failed, fetching from network",
				"nft_id", req.NFTID,
				"key", repository.ContentKey(expected),
				"error", err,
			)
		}
	}

	data, encoding, err := f.download(ctx, req.URI, req.MaxSize)
	if err != nil {
		metrics.FetchAttemptsTotal.WithLabelValues(req.Class.String(), metrics.FetchStatusError).Inc()
		return repository.FetchResult{}, err
	}

	actual := fmt.Sprintf("%x", sha256.Sum256(data))
	valid := expected != "" && actual == expected

	if valid {
		f.persist(ctx, repository.ContentKey(expected), data, encoding)
		f.renderPreview(ctx, expected, data, encoding)
		metrics.FetchAttemptsTotal.WithLabelValues(req.Class.String(), metrics.FetchStatusValid).Inc()
	} else {
		if req.ForceCache {
			// Keyed by the actual digest so the bytes stay addressable
			// even though they do not match the declaration.
			f.persist(ctx, repository.ContentKey(actual), data, encoding)
		}
		metrics.FetchAttemptsTotal.WithLabelValues(req.Class.String(), metrics.FetchStatusMismatch).Inc()
	}

	return repository.FetchResult{Valid: valid, Cached: false, Encoding: encoding}, nil
}

// download performs the HTTP GET and enforces the size cap.
func (f *HTTPFetcher) download(ctx context.Context, uri string, maxSize int64) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch: unexpected status %s", resp.Status)
	}

	if maxSize > 0 && resp.ContentLength > maxSize {
		return nil, "", fmt.Errorf("content length %d exceeds limit %d", resp.ContentLength, maxSize)
	}

	var body io.Reader = resp.Body
	if maxSize > 0 {
		// One extra byte distinguishes exactly-at-limit from over-limit
		// when the server omits Content-Length.
		body = io.LimitReader(resp.Body, maxSize+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read content: %w", err)
	}

	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, "", fmt.Errorf("content exceeds limit %d", maxSize)
	}

	encoding := http.DetectContentType(data)
	if ct := resp.Header.Get("Content-Type"); ct != "" && encoding == "application/octet-stream" {
		encoding = ct
	}

	return data, encoding, nil
}

// persist stores fetched bytes in the blob cache. Storage failures only
// degrade caching, never the verification verdict.
func (f *HTTPFetcher) persist(ctx context.Context, key string, data []byte, encoding string) {
	if err := f.store.Upload(ctx, key, bytes.NewReader(data), encoding); err != nil {
		slog.Warn("failed to store fetched content",
			"key", key,
			"error", err,
		)
	}
}

// renderPreview generates and stores a downscaled rendition of verified
// raster images. SVG is skipped: the cache manager resolves it as markup.
func (f *HTTPFetcher) renderPreview(ctx context.Context, hash string, data []byte, encoding string) {
	if !strings.HasPrefix(encoding, "image/") || encoding == "image/svg+xml" {
		return
	}

	thumb, err := f.previews.Thumbnail(data)
	if err != nil {
		slog.Warn("failed to render preview",
			"key", repository.ContentKey(hash),
			"error", err,
		)
		return
	}

	if err := f.store.Upload(ctx, repository.PreviewKey(hash), bytes.NewReader(thumb), "image/png"); err != nil {
		slog.Warn("failed to store preview",
			"key", repository.PreviewKey(hash),
			"error", err,
		)
	}
}
