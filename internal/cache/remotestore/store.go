// Package remotestore implements cache.Store on an object store bucket so
// several machines running the same pipelines share cached outputs.
package remotestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/codec"
	"github.com/specialistvlad/stepgrid/internal/objectstore"
)

const prefix = "cache/"

// Store keeps one object per cache entry under cache/<digest>.
type Store struct {
	bucket objectstore.Bucket
	codec  codec.Codec
}

var _ cache.Store = (*Store)(nil)

// New returns a store over bucket. A nil codec means msgpack.
func New(bucket objectstore.Bucket, c codec.Codec) *Store {
	if c == nil {
		c = codec.Msgpack{}
	}
	return &Store{bucket: bucket, codec: c}
}

func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	rc, err := s.bucket.Get(ctx, prefix+key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	e, err := s.decode(rc)
	if err != nil {
		return nil, false, fmt.Errorf("decode entry %s: %w", key, err)
	}
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, e *cache.Entry) error {
	raw, err := s.codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", e.Key, err)
	}
	return s.bucket.Put(ctx, prefix+e.Key, bytes.NewReader(raw), int64(len(raw)), s.codec.ContentType())
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bucket.Delete(ctx, prefix+key)
}

// Scan downloads every entry; invalidation over a large remote cache is
// proportionally slow.
func (s *Store) Scan(ctx context.Context, fn func(*cache.Entry) bool) error {
	var keys []string
	if err := s.bucket.List(ctx, prefix, func(k string) bool {
		keys = append(keys, strings.TrimPrefix(k, prefix))
		return true
	}); err != nil {
		return err
	}

	for _, k := range keys {
		e, ok, err := s.Get(ctx, k)
		if err != nil {
			return err
		}
		if !ok {
			continue // deleted since listing
		}
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func (s *Store) decode(r io.Reader) (*cache.Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var e cache.Entry
	if err := s.codec.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
