package cache

import (
	"slices"
	"time"
)

// Provenance records where a cached value came from.
type Provenance struct {
	Step     string   `msgpack:"step" json:"step"`
	RunID    string   `msgpack:"run_id" json:"run_id"`
	CodeHash string   `msgpack:"code_hash" json:"code_hash"`
	Tags     []string `msgpack:"tags" json:"tags"`
}

// Entry is one cached step output. Entries are replaced, never modified.
type Entry struct {
	Key        string     `msgpack:"key" json:"key"`
	Value      any        `msgpack:"value" json:"value"`
	CreatedAt  time.Time  `msgpack:"created_at" json:"created_at"`
	Provenance Provenance `msgpack:"provenance" json:"provenance"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Predicate selects entries for invalidation.
type Predicate func(*Entry) bool

// ForStep matches entries produced by any of the named steps.
func ForStep(names ...string) Predicate {
	return func(e *Entry) bool {
		return slices.Contains(names, e.Provenance.Step)
	}
}

// CreatedBefore matches entries stored before t.
func CreatedBefore(t time.Time) Predicate {
	return func(e *Entry) bool {
		return e.CreatedAt.Before(t)
	}
}

// OlderThan matches entries older than age, measured now.
func OlderThan(age time.Duration) Predicate {
	return CreatedBefore(time.Now().Add(-age))
}

// WithTag matches entries carrying tag.
func WithTag(tag string) Predicate {
	return func(e *Entry) bool {
		return slices.Contains(e.Provenance.Tags, tag)
	}
}

// Any matches entries matched by at least one of preds.
func Any(preds ...Predicate) Predicate {
	return func(e *Entry) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}
}

// All matches entries matched by every one of preds.
func All(preds ...Predicate) Predicate {
	return func(e *Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Everything matches every entry.
func Everything() Predicate {
	return func(*Entry) bool { return true }
}
