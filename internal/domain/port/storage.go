package port

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record or object does not exist.
var ErrNotFound = errors.New("not found")

// BlobStore is the object-storage capability consumed by the core. Input and
// output bytes live here; the core only moves them between the store and a
// scoped local working area.
type BlobStore interface {
	// Download fetches the object at key into destPath.
	Download(ctx context.Context, key string, destPath string) error
	// Upload stores the file at srcPath under key.
	Upload(ctx context.Context, key string, srcPath string, contentType string) error
	// Delete removes the object at key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignedPutURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
