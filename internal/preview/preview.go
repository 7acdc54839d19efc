package preview

// Generator defines the interface for thumbnail rendition of verified media.
// Implementations decode the source bytes and produce a reduced, wallet-grid
// sized copy suitable for the blob cache.
type Generator interface {
	// Thumbnail renders a downscaled PNG rendition of the source image bytes.
	//
	// Parameters:
	//   - data: Raw bytes of a decodable image (PNG, JPEG, GIF, TIFF, BMP)
	//
	// Returns:
	//   - PNG-encoded thumbnail bytes
	//   - error if the source cannot be decoded or the thumbnail cannot be encoded
	//
	// Sources already within the configured bounds are re-encoded unscaled.
	Thumbnail(data []byte) ([]byte, error)
}
