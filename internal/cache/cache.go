package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"golang.org/x/sync/singleflight"
)

// Stats counts lookups for one step.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns hits / (hits + misses), or 0 without lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache derives hit/miss accounting, invalidation and miss collapsing on
// top of a Store.
type Cache struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	stats map[string]*Stats

	flight singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used when no logger travels in the context.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache over store. A nil store means an in-memory one.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{
		store: store,
		now:   time.Now,
		stats: make(map[string]*Stats),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the underlying store.
func (c *Cache) Backend() Store { return c.store }

func (c *Cache) log(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return ctxlog.FromContext(ctx)
}

// Lookup returns the entry stored under key, or nil on a miss. A failing
// store yields a *StoreError and is counted as a miss.
func (c *Cache) Lookup(ctx context.Context, key Key) (*Entry, error) {
	entry, ok, err := c.store.Get(ctx, key.Digest)
	if err != nil {
		c.record(key.Step, false)
		lookupsTotal.WithLabelValues(key.Step, "error").Inc()
		return nil, &StoreError{Op: "get", Key: key.String(), Err: err}
	}
	if !ok {
		c.record(key.Step, false)
		lookupsTotal.WithLabelValues(key.Step, "miss").Inc()
		c.log(ctx).Debug("Cache miss.", "step", key.Step, "key", key.String())
		return nil, nil
	}
	c.record(key.Step, true)
	lookupsTotal.WithLabelValues(key.Step, "hit").Inc()
	c.log(ctx).Debug("Cache hit.", "step", key.Step, "key", key.String(), "created_at", entry.CreatedAt)
	return entry, nil
}

// Store writes value under key. Storing the same key twice replaces the
// entry; for deterministic steps both writes carry the same value.
func (c *Cache) Store(ctx context.Context, key Key, value any, prov Provenance) (*Entry, error) {
	if prov.Step == "" {
		prov.Step = key.Step
	}
	entry := &Entry{
		Key:        key.Digest,
		Value:      value,
		CreatedAt:  c.now().UTC(),
		Provenance: prov,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		writesTotal.WithLabelValues(key.Step, "error").Inc()
		return nil, &StoreError{Op: "put", Key: key.String(), Err: err}
	}
	writesTotal.WithLabelValues(key.Step, "ok").Inc()
	return entry, nil
}

// Invalidate removes every entry matching pred and returns how many were
// removed.
func (c *Cache) Invalidate(ctx context.Context, pred Predicate) (int, error) {
	var doomed []string
	err := c.store.Scan(ctx, func(e *Entry) bool {
		if pred(e) {
			doomed = append(doomed, e.Key)
		}
		return true
	})
	if err != nil {
		return 0, &StoreError{Op: "scan", Err: err}
	}

	removed := 0
	for _, key := range doomed {
		if err := c.store.Delete(ctx, key); err != nil {
			return removed, &StoreError{Op: "delete", Key: key, Err: err}
		}
		removed++
	}
	invalidatedTotal.Add(float64(removed))
	c.log(ctx).Info("Cache entries invalidated.", "count", removed)
	return removed, nil
}

// Do runs fn once per digest among concurrent callers; the others wait and
// receive the same result with shared=true.
func (c *Cache) Do(digest string, fn func() (any, error)) (v any, err error, shared bool) {
	v, err, shared = c.flight.Do(digest, fn)
	if shared {
		sharedTotal.Inc()
	}
	return v, err, shared
}

func (c *Cache) record(stepName string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[stepName]
	if !ok {
		s = &Stats{}
		c.stats[stepName] = s
	}
	if hit {
		s.Hits++
	} else {
		s.Misses++
	}
}

// Stats returns the counters of one step.
func (c *Cache) Stats(stepName string) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[stepName]; ok {
		return *s
	}
	return Stats{}
}

// AllStats returns the counters of every step looked up so far.
func (c *Cache) AllStats() map[string]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Stats, len(c.stats))
	for name, s := range c.stats {
		out[name] = *s
	}
	return out
}

// Total sums the counters of every step.
func (c *Cache) Total() Stats {
	var total Stats
	for _, s := range c.AllStats() {
		total.Hits += s.Hits
		total.Misses += s.Misses
	}
	return total
}

// ResetStats clears every counter.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*Stats)
}
