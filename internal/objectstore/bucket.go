// Package objectstore wraps object storage (MinIO or S3, Google Cloud Storage) behind
// the small Bucket interface used by the remote cache and the artifact store.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Bucket is a flat key/value object namespace.
type Bucket interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// List calls fn for every key under prefix until fn returns false.
	List(ctx context.Context, prefix string, fn func(key string) bool) error
	// URI returns the canonical location of key, e.g. s3://bucket/key.
	URI(key string) string
}
