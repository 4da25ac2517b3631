package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ObjectStorage defines the interface for object storage operations. Its
// consumer is the dead letter archive: the worker writes the final form of
// failed sync jobs outside the queue store, and the admin API presigns
// downloads and discards copies of requeued jobs.
type ObjectStorage interface {
	// PutObject uploads an object under the given key.
	PutObject(ctx context.Context, key string, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for downloading an archived object directly from the provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}
