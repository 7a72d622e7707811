package step

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy groups everything that shapes how a step is executed.
type Policy struct {
	Cache          CacheStrategy
	Retry          RetryPolicy
	Timeout        time.Duration
	Resources      map[string]string
	CircuitBreaker *CircuitBreaker
	Fallback       Func
	RateLimit      *RateLimit
	Tags           []string
}

// DefaultPolicy caches by code hash, runs once and has no timeout.
func DefaultPolicy() Policy {
	return Policy{
		Cache: CodeHash(),
		Retry: NoRetry(),
	}
}

func (p Policy) clone() Policy {
	cp := p
	cp.Resources = maps.Clone(p.Resources)
	cp.Tags = slices.Clone(p.Tags)
	if p.CircuitBreaker != nil {
		cb := *p.CircuitBreaker
		cp.CircuitBreaker = &cb
	}
	if p.RateLimit != nil {
		rl := *p.RateLimit
		cp.RateLimit = &rl
	}
	return cp
}

func (p Policy) validate() error {
	if p.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if p.Retry.MaxAttempts < 0 {
		return errors.New("retry max attempts must not be negative")
	}
	if p.Cache.Kind == CacheCustom && p.Cache.Key == nil {
		return errors.New("custom cache strategy requires a key function")
	}
	if cb := p.CircuitBreaker; cb != nil {
		if cb.FailureThreshold < 1 {
			return errors.New("circuit breaker failure threshold must be at least 1")
		}
		if cb.RecoveryTimeout <= 0 {
			return errors.New("circuit breaker recovery timeout must be positive")
		}
	}
	if rl := p.RateLimit; rl != nil && rl.Limit <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

// CacheKind enumerates the cache key derivation strategies.
type CacheKind int

const (
	// CacheCodeHash keys on the step's code fingerprint only. Changing the
	// step's arguments does not change the key.
	CacheCodeHash CacheKind = iota
	// CacheInputHash keys on the fingerprint and a content hash of the
	// resolved arguments.
	CacheInputHash
	// CacheDisabled never reads or writes the cache.
	CacheDisabled
	// CacheCustom delegates key derivation to a caller supplied function.
	CacheCustom
)

func (k CacheKind) String() string {
	switch k {
	case CacheCodeHash:
		return "code_hash"
	case CacheInputHash:
		return "input_hash"
	case CacheDisabled:
		return "disabled"
	case CacheCustom:
		return "custom"
	default:
		return fmt.Sprintf("CacheKind(%d)", int(k))
	}
}

// KeyFunc derives a custom cache key from a step and its resolved arguments.
type KeyFunc func(s *Step, args Args) (string, error)

// CacheStrategy selects how a step's cache key is derived.
type CacheStrategy struct {
	Kind CacheKind
	Key  KeyFunc
}

func CodeHash() CacheStrategy  { return CacheStrategy{Kind: CacheCodeHash} }
func InputHash() CacheStrategy { return CacheStrategy{Kind: CacheInputHash} }
func NoCache() CacheStrategy   { return CacheStrategy{Kind: CacheDisabled} }

// Custom uses fn to derive the cache key. Keys are scoped to the step, so
// two steps returning the same key still get separate entries.
func Custom(fn KeyFunc) CacheStrategy {
	return CacheStrategy{Kind: CacheCustom, Key: fn}
}

func (c CacheStrategy) String() string { return c.Kind.String() }

// Enabled reports whether the strategy reads and writes the cache at all.
func (c CacheStrategy) Enabled() bool { return c.Kind != CacheDisabled }

// ParseCacheStrategy maps a configuration keyword onto a strategy. Custom
// strategies cannot be expressed as a keyword.
func ParseCacheStrategy(s string) (CacheStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "code_hash", "code":
		return CodeHash(), nil
	case "input_hash", "input", "inputs":
		return InputHash(), nil
	case "disabled", "none", "off":
		return NoCache(), nil
	default:
		return CacheStrategy{}, fmt.Errorf("unknown cache strategy '%s'", s)
	}
}

// RetryPolicy bounds how often a failing step is attempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero is treated as one.
	MaxAttempts int
	// Backoff produces the delay schedule for one invocation. Nil means
	// Exponential(DefaultBackoffInitial, DefaultBackoffMax).
	Backoff BackoffFactory
	// RetryOn, if set, must return true for an error to be retried.
	RetryOn func(error) bool
	// AbortOn, if set, marks errors that fail immediately.
	AbortOn func(error) bool
}

// NoRetry runs a step exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Retry allows up to attempts tries with the given backoff schedule.
func Retry(attempts int, b BackoffFactory) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Backoff: b}
}

// Attempts returns the effective attempt bound.
func (r RetryPolicy) Attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Retryable reports whether err may be retried under this policy.
func (r RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	if r.AbortOn != nil && r.AbortOn(err) {
		return false
	}
	if r.RetryOn != nil {
		return r.RetryOn(err)
	}
	return true
}

// Schedule returns a fresh delay schedule.
func (r RetryPolicy) Schedule() backoff.BackOff {
	factory := r.Backoff
	if factory == nil {
		factory = Exponential(DefaultBackoffInitial, DefaultBackoffMax)
	}
	b := factory()
	b.Reset()
	return b
}

// Permanent marks err as non-retryable regardless of the retry policy.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// CircuitBreaker configures the per-step breaker kept by the executor.
type CircuitBreaker struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before a single
	// trial call is let through.
	RecoveryTimeout time.Duration
}

// RateLimit caps how often a step may start an attempt: Limit attempts per
// Per interval, with bursts of up to Burst.
type RateLimit struct {
	Limit float64
	Per   time.Duration
	Burst int
}

// PerSecond returns the limit normalized to events per second.
func (r RateLimit) PerSecond() float64 {
	per := r.Per
	if per <= 0 {
		per = time.Second
	}
	return r.Limit / per.Seconds()
}
