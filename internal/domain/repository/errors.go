package repository

import "errors"

var (
	// ErrNFTNotFound is returned when an NFT is not present in the registry.
	ErrNFTNotFound = errors.New("nft not found")

	// ErrObjectNotFound is returned when a blob is not present in object storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
