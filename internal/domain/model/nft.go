package model

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// NFT is the registry record for a wallet NFT whose declared media this
// service verifies. DataURI is the primary content URI and DataHash the
// hash the content must match, both declared on chain at mint time.
type NFT struct {
	ID        string
	Name      string
	DataURI   string
	DataHash  string
	Metadata  json.RawMessage
	UpdatedAt time.Time
}

var (
	ErrEmptyNFTID      = errors.New("nft ID cannot be empty")
	ErrInvalidNFTID    = errors.New("nft ID cannot contain underscores")
	ErrEmptyDataURI    = errors.New("data URI cannot be empty")
	ErrInvalidDataHash = errors.New("data hash must be a hex digest")
)

// NewNFT creates a registry record, validating the identifying fields.
// Underscores are rejected in IDs because cache references join the ID
// and URI on an underscore. The raw metadata document is stored as-is;
// it is parsed lazily at the verification boundary so a malformed
// document does not block registration.
func NewNFT(id, name, dataURI, dataHash string, metadata json.RawMessage) (*NFT, error) {
	if id == "" {
		return nil, ErrEmptyNFTID
	}
	if strings.Contains(id, "_") {
		return nil, ErrInvalidNFTID
	}
	if dataURI == "" {
		return nil, ErrEmptyDataURI
	}
	if !validHexDigest(dataHash) {
		return nil, ErrInvalidDataHash
	}

	return &NFT{
		ID:        id,
		Name:      name,
		DataURI:   dataURI,
		DataHash:  dataHash,
		Metadata:  metadata,
		UpdatedAt: time.Now(),
	}, nil
}

// validHexDigest accepts a non-empty, even-length hex string with an
// optional 0x prefix.
func validHexDigest(h string) bool {
	h = strings.TrimPrefix(strings.ToLower(h), "0x")
	if h == "" || len(h)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// Metadata is the typed form of the preview fields in an NFT's off-chain
// metadata document. The document is externally authored; anything beyond
// the preview declarations is ignored here.
type Metadata struct {
	PreviewVideoURIs []string
	PreviewVideoHash string
	PreviewImageURIs []string
	PreviewImageHash string
}

// HasVideoPreview reports whether the document declares any video preview URIs.
func (m *Metadata) HasVideoPreview() bool {
	return m != nil && len(m.PreviewVideoURIs) > 0
}

// HasImagePreview reports whether the document declares any image preview URIs.
func (m *Metadata) HasImagePreview() bool {
	return m != nil && len(m.PreviewImageURIs) > 0
}

// metadataJSON is the wire shape of the metadata document's preview fields.
type metadataJSON struct {
	PreviewVideoURIs []string `json:"preview_video_uris"`
	PreviewVideoHash string   `json:"preview_video_hash"`
	PreviewImageURIs []string `json:"preview_image_uris"`
	PreviewImageHash string   `json:"preview_image_hash"`
}

// ParseMetadata converts a raw metadata document into its typed form.
// A nil or empty document yields a nil Metadata with no error. Declared
// but empty URI lists normalize to absent.
func ParseMetadata(raw json.RawMessage) (*Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc metadataJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	m := &Metadata{
		PreviewVideoURIs: normalizeURIList(doc.PreviewVideoURIs),
		PreviewVideoHash: doc.PreviewVideoHash,
		PreviewImageURIs: normalizeURIList(doc.PreviewImageURIs),
		PreviewImageHash: doc.PreviewImageHash,
	}
	return m, nil
}

func normalizeURIList(uris []string) []string {
	out := uris[:0:0]
	for _, u := range uris {
		if u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
