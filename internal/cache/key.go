package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"maps"
	"slices"

	"github.com/specialistvlad/stepgrid/internal/codec"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Key identifies one cached step output.
type Key struct {
	Step     string
	Strategy step.CacheKind
	Digest   string
}

func (k Key) String() string {
	d := k.Digest
	if len(d) > 12 {
		d = d[:12]
	}
	return fmt.Sprintf("%s/%s/%s", k.Step, k.Strategy, d)
}

// ContentHasher is implemented by values that know how to hash their own
// content, such as tabular data whose canonical encoding is expensive.
type ContentHasher interface {
	ContentHash() ([]byte, error)
}

// KeyFor derives the cache key of s invoked with args. ok is false when the
// step's strategy disables caching.
//
// CodeHash keys cover the step name and code fingerprint only, so the same
// step reuses its output whatever its arguments. InputHash keys add a
// content hash of the arguments.
func KeyFor(s *step.Step, args step.Args) (key Key, ok bool, err error) {
	strategy := s.Cache()
	key = Key{Step: s.Name(), Strategy: strategy.Kind}

	switch strategy.Kind {
	case step.CacheDisabled:
		return Key{}, false, nil
	case step.CacheCodeHash:
		key.Digest = digest("code", s.Name(), s.CodeHash())
	case step.CacheInputHash:
		argsHash, err := HashArgs(args)
		if err != nil {
			return Key{}, false, fmt.Errorf("hashing arguments of step '%s': %w", s.Name(), err)
		}
		key.Digest = digest("input", s.Name(), s.CodeHash(), argsHash)
	case step.CacheCustom:
		custom, err := strategy.Key(s, args)
		if err != nil {
			return Key{}, false, fmt.Errorf("custom cache key of step '%s': %w", s.Name(), err)
		}
		if custom == "" {
			return Key{}, false, errors.New("custom cache key must not be empty")
		}
		key.Digest = digest("custom", s.Name(), custom)
	default:
		return Key{}, false, fmt.Errorf("unknown cache strategy %s", strategy.Kind)
	}
	return key, true, nil
}

// HashArgs returns a hex SHA-256 over a canonical encoding of args. Equal
// argument sets hash equally regardless of map order, and a value hashes the
// same before and after a round trip through a persistent store.
func HashArgs(args step.Args) (string, error) {
	h := sha256.New()
	for _, name := range slices.Sorted(maps.Keys(args)) {
		writePart(h, name)
		if err := hashValue(h, args[name]); err != nil {
			return "", fmt.Errorf("argument '%s': %w", name, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashValue(h hash.Hash, v any) error {
	if ch, ok := v.(ContentHasher); ok {
		sum, err := ch.ContentHash()
		if err != nil {
			return err
		}
		h.Write([]byte{1})
		writePart(h, string(sum))
		return nil
	}
	norm, err := codec.Normalize(v)
	if err != nil {
		return err
	}
	h.Write([]byte{0})
	return codec.WriteCanonical(h, norm)
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		writePart(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writePart length-prefixes p so that adjacent parts cannot run together.
func writePart(h hash.Hash, p string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(p)))
	h.Write(n[:])
	h.Write([]byte(p))
}
