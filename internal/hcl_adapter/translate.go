// This file translates the HCL schema structs into the format-agnostic
// configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/stepgrid/internal/config"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/params"
)

func translatePipeline(p *Pipeline) config.Engine {
	return config.Engine{
		Name:            p.Name,
		Workers:         p.Workers,
		HealthcheckPort: p.HealthcheckPort,
		LogLevel:        p.LogLevel,
		LogFormat:       p.LogFormat,
	}
}

func translateCache(c *Cache) (config.Cache, error) {
	out := config.Cache{
		Backend:    orDefault(c.Backend, "memory"),
		Path:       c.Path,
		InMemory:   c.InMemory,
		SyncWrites: c.SyncWrites,
		Codec:      orDefault(c.Codec, "msgpack"),
	}
	ttl, err := parseDuration(c.TTL, "cache ttl")
	if err != nil {
		return config.Cache{}, err
	}
	out.TTL = ttl
	if c.Bucket != nil {
		out.Bucket = translateBucket(c.Bucket)
	}
	return out, nil
}

func translateParams(p *Params, evalCtx *hcl.EvalContext) (map[string]any, error) {
	attrs, diags := p.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("params block may only hold attributes: %w", diags)
	}
	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate param '%s': %w", name, diags)
		}
		goVal, err := params.FromCty(val)
		if err != nil {
			return nil, fmt.Errorf("param '%s': %w", name, err)
		}
		out[name] = goVal
	}
	return out, nil
}

func translateBucket(b *Bucket) *config.Bucket {
	return &config.Bucket{
		Backend:         orDefault(b.Backend, "minio"),
		Endpoint:        b.Endpoint,
		AccessKey:       b.AccessKey,
		SecretKey:       b.SecretKey,
		Region:          b.Region,
		UseSSL:          b.UseSSL,
		Name:            b.Name,
		Prefix:          b.Prefix,
		CredentialsFile: b.CredentialsFile,
	}
}

func translateArtifacts(a *Artifacts) *config.Artifacts {
	out := &config.Artifacts{Codec: orDefault(a.Codec, "json")}
	if a.Bucket != nil {
		out.Bucket = translateBucket(a.Bucket)
	}
	return out
}

func translateMetadata(m *Metadata) *config.Metadata {
	return &config.Metadata{Backend: orDefault(m.Backend, "postgres"), URL: m.URL}
}

func translateObserver(o *Observer) *config.Observer {
	return &config.Observer{
		Type:      o.Type,
		URL:       o.URL,
		Namespace: o.Namespace,
		Event:     o.Event,
		Token:     o.Token,
		Org:       o.Org,
		Bucket:    o.Bucket,
	}
}

// translateStep converts the HCL-specific step schema into the agnostic model.
func translateStep(ctx context.Context, s *Step, evalCtx *hcl.EvalContext) (*config.Step, error) {
	logger := ctxlog.FromContext(ctx).With("step", s.Name, "uses", s.Uses)
	logger.Debug("Translating HCL step to internal config model.")

	out := &config.Step{
		Name:        s.Name,
		Uses:        s.Uses,
		Description: s.Description,
		Version:     s.Version,
		Inputs:      s.Inputs,
		Outputs:     s.Outputs,
		Cache:       s.Cache,
		Resources:   s.Resources,
		Tags:        s.Tags,
		Fallback:    s.Fallback,
	}

	var err error
	if out.Params, err = stepParams(s, evalCtx); err != nil {
		return nil, err
	}
	if out.Timeout, err = parseDuration(s.Timeout, "timeout"); err != nil {
		return nil, fmt.Errorf("step '%s': %w", s.Name, err)
	}

	if s.Retry != nil {
		out.Retry = &config.Retry{Attempts: s.Retry.Attempts}
		if b := s.Retry.Backoff; b != nil {
			backoff := &config.Backoff{Strategy: orDefault(b.Strategy, "exponential"), Jitter: b.Jitter}
			if backoff.Initial, err = parseDuration(b.Initial, "backoff initial"); err != nil {
				return nil, fmt.Errorf("step '%s': %w", s.Name, err)
			}
			if backoff.Max, err = parseDuration(b.Max, "backoff max"); err != nil {
				return nil, fmt.Errorf("step '%s': %w", s.Name, err)
			}
			out.Retry.Backoff = backoff
		}
	}
	if cb := s.CircuitBreaker; cb != nil {
		recovery, err := parseDuration(cb.RecoveryTimeout, "recovery_timeout")
		if err != nil {
			return nil, fmt.Errorf("step '%s': %w", s.Name, err)
		}
		out.CircuitBreaker = &config.CircuitBreaker{FailureThreshold: cb.FailureThreshold, RecoveryTimeout: recovery}
	}
	if rl := s.RateLimit; rl != nil {
		per, err := parseDuration(rl.Per, "rate_limit per")
		if err != nil {
			return nil, fmt.Errorf("step '%s': %w", s.Name, err)
		}
		out.RateLimit = &config.RateLimit{Limit: rl.Limit, Per: per, Burst: rl.Burst}
	}
	return out, nil
}

// stepParams evaluates the `params` attribute, an object of parameter
// names to defaults. A null default makes the parameter required.
func stepParams(s *Step, evalCtx *hcl.EvalContext) (map[string]any, error) {
	if s.Params == nil {
		return nil, nil
	}
	val, diags := s.Params.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("step '%s': failed to evaluate params: %w", s.Name, diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("step '%s': params must be an object, got %s", s.Name, val.Type().FriendlyName())
	}
	out := make(map[string]any, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		goVal, err := params.FromCty(v)
		if err != nil {
			return nil, fmt.Errorf("step '%s', param '%s': %w", s.Name, k.AsString(), err)
		}
		out[k.AsString()] = goVal
	}
	return out, nil
}

func parseDuration(s, what string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
