package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig describes a Google Cloud Storage bucket.
type GCSConfig struct {
	Bucket string
	Prefix string
	// CredentialsFile is a service account key. Empty means application
	// default credentials.
	CredentialsFile string
}

// GCSBucket implements Bucket on Google Cloud Storage.
type GCSBucket struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ Bucket = (*GCSBucket)(nil)

// OpenGCS creates a storage client for cfg.
func OpenGCS(ctx context.Context, cfg GCSConfig) (*GCSBucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSBucket{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (b *GCSBucket) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *GCSBucket) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	name := b.objectKey(key)
	writer := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to copy to GCS object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	return nil
}

func (b *GCSBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.client.Bucket(b.bucket).Object(b.objectKey(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	return r, err
}

func (b *GCSBucket) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(b.objectKey(key)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *GCSBucket) List(ctx context.Context, prefix string, fn func(key string) bool) error {
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: b.objectKey(prefix)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		key := attrs.Name
		if b.prefix != "" {
			key = strings.TrimPrefix(strings.TrimPrefix(key, b.prefix), "/")
		}
		if !fn(key) {
			return nil
		}
	}
}

func (b *GCSBucket) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", b.bucket, b.objectKey(key))
}

// Close releases the storage client.
func (b *GCSBucket) Close() error {
	return b.client.Close()
}
