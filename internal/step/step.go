package step

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/stepgrid/internal/params"
)

// Func is the callable a step wraps. Steps with a single declared output
// return that value directly; steps with several outputs return Outputs.
type Func func(ctx context.Context, args Args) (any, error)

// Outputs carries the values of a multi-output step keyed by output name.
type Outputs map[string]any

// Step is an immutable descriptor of one unit of work.
type Step struct {
	name        string
	description string
	fn          Func
	inputs      []string
	outputs     []string
	params      []params.Param
	version     string
	codeHash    string
	policy      Policy
}

// Option configures a Step during construction.
type Option func(*Step)

// New builds and validates a step. The code fingerprint is computed here,
// once, unless WithCodeHash supplies one.
func New(name string, fn Func, opts ...Option) (*Step, error) {
	s := &Step{
		name:   name,
		fn:     fn,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.codeHash == "" {
		s.codeHash = Fingerprint(fn, s.version)
	}
	return s, nil
}

// MustNew is like New but panics on an invalid declaration.
func MustNew(name string, fn Func, opts ...Option) *Step {
	s, err := New(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// With returns a copy of the step with additional options applied. The
// fingerprint is recomputed only if the options change the version.
func (s *Step) With(opts ...Option) (*Step, error) {
	cp := s.clone()
	version, hash := cp.version, cp.codeHash
	for _, opt := range opts {
		opt(cp)
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}
	if cp.version != version && cp.codeHash == hash {
		cp.codeHash = Fingerprint(cp.fn, cp.version)
	}
	return cp, nil
}

func (s *Step) clone() *Step {
	cp := *s
	cp.inputs = slices.Clone(s.inputs)
	cp.outputs = slices.Clone(s.outputs)
	cp.params = slices.Clone(s.params)
	cp.policy = s.policy.clone()
	return &cp
}

func (s *Step) validate() error {
	if s.name == "" {
		return &ValidationError{Reason: "name must not be empty"}
	}
	if s.fn == nil {
		return &ValidationError{Step: s.name, Reason: "callable must not be nil"}
	}
	if dup, ok := firstDuplicate(s.outputs); ok {
		return &ValidationError{Step: s.name, Reason: fmt.Sprintf("duplicate output '%s'", dup)}
	}
	if dup, ok := firstDuplicate(s.inputs); ok {
		return &ValidationError{Step: s.name, Reason: fmt.Sprintf("duplicate input '%s'", dup)}
	}
	for _, out := range s.outputs {
		if slices.Contains(s.inputs, out) {
			return &ValidationError{Step: s.name, Reason: fmt.Sprintf("asset '%s' is both input and output", out)}
		}
	}
	names := make([]string, 0, len(s.params))
	for _, p := range s.params {
		if p.Name == "" {
			return &ValidationError{Step: s.name, Reason: "parameter name must not be empty"}
		}
		names = append(names, p.Name)
	}
	if dup, ok := firstDuplicate(names); ok {
		return &ValidationError{Step: s.name, Reason: fmt.Sprintf("duplicate parameter '%s'", dup)}
	}
	if err := s.policy.validate(); err != nil {
		return &ValidationError{Step: s.name, Reason: err.Error()}
	}
	return nil
}

func firstDuplicate(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n, true
		}
		seen[n] = struct{}{}
	}
	return "", false
}

// Invoke calls the wrapped function.
func (s *Step) Invoke(ctx context.Context, args Args) (any, error) {
	return s.fn(ctx, args)
}

func (s *Step) Name() string        { return s.name }
func (s *Step) Description() string { return s.description }
func (s *Step) Version() string     { return s.version }

// CodeHash returns the code fingerprint computed at construction.
func (s *Step) CodeHash() string { return s.codeHash }

func (s *Step) Inputs() []string       { return slices.Clone(s.inputs) }
func (s *Step) Outputs() []string      { return slices.Clone(s.outputs) }
func (s *Step) Params() []params.Param { return slices.Clone(s.params) }
func (s *Step) Policy() Policy         { return s.policy.clone() }
func (s *Step) Cache() CacheStrategy   { return s.policy.Cache }
func (s *Step) Retry() RetryPolicy     { return s.policy.Retry }
func (s *Step) Timeout() time.Duration { return s.policy.Timeout }
func (s *Step) Tags() []string         { return slices.Clone(s.policy.Tags) }
func (s *Step) Resources() map[string]string {
	return maps.Clone(s.policy.Resources)
}

// HasFallback reports whether a fallback callable is configured.
func (s *Step) HasFallback() bool { return s.policy.Fallback != nil }

// InvokeFallback calls the fallback callable. It must only be used when
// HasFallback is true.
func (s *Step) InvokeFallback(ctx context.Context, args Args) (any, error) {
	return s.policy.Fallback(ctx, args)
}

func (s *Step) String() string {
	return fmt.Sprintf("step(%s)", s.name)
}
