package storage

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectStorage stores NFT metadata documents in an object store.
type ObjectStorage interface {
	// PutJSON marshals v and stores it under objectKey. It returns the
	// object's canonical URI (s3://bucket/key).
	PutJSON(ctx context.Context, objectKey string, v any) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// NFTMetadataKey is the object key of an NFT's metadata document.
func NFTMetadataKey(tokenID uint64) string {
	return "nfts/" + strconv.FormatUint(tokenID, 10) + ".json"
}
