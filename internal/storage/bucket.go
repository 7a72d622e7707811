package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/specialistvlad/stepgrid/internal/codec"
	"github.com/specialistvlad/stepgrid/internal/objectstore"
)

// BucketArtifacts saves artifacts as encoded objects in a bucket.
type BucketArtifacts struct {
	bucket objectstore.Bucket
	codec  codec.Codec
}

var _ ArtifactStore = (*BucketArtifacts)(nil)

// NewBucketArtifacts returns an artifact store over bucket. A nil codec
// means JSON, which keeps artifacts readable outside the engine.
func NewBucketArtifacts(bucket objectstore.Bucket, c codec.Codec) *BucketArtifacts {
	if c == nil {
		c = codec.JSON{}
	}
	return &BucketArtifacts{bucket: bucket, codec: c}
}

func (a *BucketArtifacts) Save(ctx context.Context, value any, path string) (string, error) {
	raw, err := a.codec.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode artifact %s: %w", path, err)
	}
	key := "artifacts/" + path + "." + a.codec.Name()
	if err := a.bucket.Put(ctx, key, bytes.NewReader(raw), int64(len(raw)), a.codec.ContentType()); err != nil {
		return "", fmt.Errorf("save artifact %s: %w", path, err)
	}
	return a.bucket.URI(key), nil
}

// Load reads an artifact previously written by Save.
func (a *BucketArtifacts) Load(ctx context.Context, path string, v any) error {
	rc, err := a.bucket.Get(ctx, "artifacts/"+path+"."+a.codec.Name())
	if err != nil {
		return err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return err
	}
	return a.codec.Unmarshal(buf.Bytes(), v)
}
