package objectstore

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBucket implements Bucket with minio-go.
type MinioBucket struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ Bucket = (*MinioBucket)(nil)

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// Open connects to the configured endpoint and makes sure the bucket exists.
func Open(ctx context.Context, cfg Config) (*MinioBucket, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	return NewMinioBucket(client, cfg.Bucket, cfg.Prefix)
}

func NewMinioBucket(client *minio.Client, bucket, prefix string) (*MinioBucket, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &MinioBucket{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (b *MinioBucket) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *MinioBucket) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := b.client.PutObject(ctx, b.bucket, b.objectKey(key), body, size, opts)
	return err
}

func (b *MinioBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name := b.objectKey(key)
	// GetObject is lazy; stat first so a missing key surfaces here.
	if _, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *MinioBucket) Delete(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.bucket, b.objectKey(key), minio.RemoveObjectOptions{})
}

func (b *MinioBucket) List(ctx context.Context, prefix string, fn func(key string) bool) error {
	full := b.objectKey(prefix)
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if obj.Err != nil {
			return obj.Err
		}
		key := obj.Key
		if b.prefix != "" {
			key = strings.TrimPrefix(strings.TrimPrefix(key, b.prefix), "/")
		}
		if !fn(key) {
			return nil
		}
	}
	return nil
}

func (b *MinioBucket) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.objectKey(key))
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
