package step

import (
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/stepgrid/internal/params"
)

// WithInputs declares the assets the step consumes, in argument order.
func WithInputs(names ...string) Option {
	return func(s *Step) { s.inputs = append(s.inputs, names...) }
}

// WithOutputs declares the assets the step produces.
func WithOutputs(names ...string) Option {
	return func(s *Step) { s.outputs = append(s.outputs, names...) }
}

// WithParams declares context parameters the step reads.
func WithParams(ps ...params.Param) Option {
	return func(s *Step) { s.params = append(s.params, ps...) }
}

func WithDescription(d string) Option {
	return func(s *Step) { s.description = d }
}

// WithVersion mixes an explicit version string into the code fingerprint.
// Bump it whenever the step's behavior changes.
func WithVersion(v string) Option {
	return func(s *Step) { s.version = v }
}

// WithCodeHash replaces the computed fingerprint entirely.
func WithCodeHash(h string) Option {
	return func(s *Step) { s.codeHash = h }
}

func WithPolicy(p Policy) Option {
	return func(s *Step) { s.policy = p.clone() }
}

func WithCache(c CacheStrategy) Option {
	return func(s *Step) { s.policy.Cache = c }
}

func WithRetry(r RetryPolicy) Option {
	return func(s *Step) { s.policy.Retry = r }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Step) { s.policy.Timeout = d }
}

func WithResources(r map[string]string) Option {
	return func(s *Step) { s.policy.Resources = maps.Clone(r) }
}

func WithCircuitBreaker(cb CircuitBreaker) Option {
	return func(s *Step) { s.policy.CircuitBreaker = &cb }
}

// WithFallback registers a callable used once every attempt has failed.
func WithFallback(fn Func) Option {
	return func(s *Step) { s.policy.Fallback = fn }
}

func WithRateLimit(rl RateLimit) Option {
	return func(s *Step) { s.policy.RateLimit = &rl }
}

func WithTags(tags ...string) Option {
	return func(s *Step) { s.policy.Tags = append(slices.Clone(s.policy.Tags), tags...) }
}
