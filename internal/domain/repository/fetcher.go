package repository

import (
	"context"

	"github.com/aosk-dev/nftmedia/internal/mediatype"
)

// FetchRequest describes one remote-content fetch with hash verification.
type FetchRequest struct {
	// URI is the remote location of the content.
	URI string
	// Class is the coarse content classification driving fetch policy.
	Class mediatype.Class
	// ExpectedHash is the declared hex SHA-256 digest the content must match.
	ExpectedHash string
	// MaxSize caps the downloaded byte count. Zero or negative means unlimited.
	MaxSize int64
	// ForceCache persists the fetched bytes even when verification fails,
	// keyed by their actual digest.
	ForceCache bool
	// NFTID identifies the NFT the fetch belongs to, for logging and metrics.
	NFTID string
}

// FetchResult reports the outcome of a fetch.
type FetchResult struct {
	// Valid is true when the content digest matched the expected hash.
	Valid bool
	// Cached is true when the content was served from the local blob cache
	// rather than fetched over the network.
	Cached bool
	// Encoding is the detected content type of the bytes.
	Encoding string
}

// ContentFetcher retrieves remote content and verifies it against a
// declared hash. Transport-level failures are returned as errors; a hash
// mismatch is a successful fetch with Valid=false.
// Implementations should be provided by the infrastructure layer.
type ContentFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}
