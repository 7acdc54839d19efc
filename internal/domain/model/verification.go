package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Verification failure reasons surfaced to the wallet UI. The message
// texts are part of the UI contract and must not change.
var (
	ErrMissingPreviewVideoHash = errors.New("missing preview_video_hash")
	ErrMissingPreviewImageHash = errors.New("missing preview_image_hash")
	ErrInvalidURI              = errors.New("Invalid URI")
	ErrThumbnailHashMismatch   = errors.New("thumbnail hash mismatch")
	ErrFailedFetchContent      = errors.New("failed fetch content")
	ErrHashMismatch            = errors.New("Hash mismatch")
)

// Thumbnail holds the renderable media reference per content class. A
// value is either a remote URI, a "cached://" reference into the local
// media cache, or (for SVG binary content) inline markup.
type Thumbnail struct {
	Video  string `json:"video,omitempty"`
	Image  string `json:"image,omitempty"`
	Binary string `json:"binary,omitempty"`
}

// IsZero reports whether no thumbnail reference has been resolved yet.
func (t Thumbnail) IsZero() bool {
	return t == Thumbnail{}
}

// VerificationState is the UI-facing outcome of a verification session.
// Encoding is per-session state; it reports the content encoding the
// fetcher detected for the NFT's binary content.
type VerificationState struct {
	IsValid               bool
	IsLoading             bool
	Error                 string
	Thumbnail             Thumbnail
	IsValidationProcessed bool
	Validate              bool
	Encoding              string
}

// cachedScheme prefixes thumbnail references that resolve into the local
// media cache instead of the remote URI.
const cachedScheme = "cached://"

// EncodeCacheRef builds the opaque reference persisted in the thumbnail
// and content caches for a fetched URI.
func EncodeCacheRef(nftID, uri string) string {
	return base64.StdEncoding.EncodeToString([]byte(nftID + "_" + uri))
}

// DecodeCacheRef reverses EncodeCacheRef.
func DecodeCacheRef(ref string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return "", fmt.Errorf("decode cache ref: %w", err)
	}
	return string(raw), nil
}

// CachedURI returns the display form of a cache reference for a fetched URI.
func CachedURI(nftID, uri string) string {
	return cachedScheme + nftID + "_" + uri
}

// CachedURIFromRef returns the display form for a persisted encoded
// reference, falling back to the raw reference when it does not decode.
func CachedURIFromRef(ref string) string {
	decoded, err := DecodeCacheRef(ref)
	if err != nil {
		return ref
	}
	return cachedScheme + decoded
}

// SplitCacheRef splits a decoded cache reference of the form
// "{nftID}_{uri}" into its parts. NFT identifiers contain no underscore,
// so the first underscore is the separator.
func SplitCacheRef(decoded string) (nftID, uri string) {
	if i := strings.Index(decoded, "_"); i >= 0 {
		return decoded[:i], decoded[i+1:]
	}
	return decoded, ""
}
