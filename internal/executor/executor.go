package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/observer"
	"github.com/specialistvlad/stepgrid/internal/step"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	tracer = otel.Tracer("stepgrid.executor")
	meter  = otel.Meter("stepgrid.executor")
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs steps under their retry, timeout, breaker and fallback
// policies.
type Executor struct {
	hub   *observer.Hub
	sleep SleepFunc
	now   func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
	limiters map[string]*rate.Limiter

	metricsOnce  sync.Once
	stepLatency  metric.Float64Histogram
	stepOutcomes metric.Int64Counter
	stepRetries  metric.Int64Counter
}

// Option configures an Executor.
type Option func(*Executor)

// WithObservers registers observers on the executor's hub.
func WithObservers(obs ...observer.Observer) Option {
	return func(e *Executor) {
		for _, o := range obs {
			e.hub.Register(o)
		}
	}
}

// WithHub replaces the executor's hub, letting a pipeline share one hub
// between its own events and the executor's.
func WithHub(h *observer.Hub) Option {
	return func(e *Executor) {
		if h != nil {
			e.hub = h
		}
	}
}

// WithSleep replaces the backoff sleep. Tests use it to skip real delays.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithClock replaces the time source used for durations and breakers.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		hub:      observer.NewHub(),
		sleep:    sleepContext,
		now:      time.Now,
		breakers: make(map[string]*Breaker),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hub returns the hub events are delivered to.
func (e *Executor) Hub() *observer.Hub { return e.hub }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) initMetrics(logger *slog.Logger) {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stepLatency, err = meter.Float64Histogram("stepgrid_step_duration_seconds",
			metric.WithDescription("Time spent invoking each step, retries included"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_latency: "+err.Error())
		}

		e.stepOutcomes, err = meter.Int64Counter("stepgrid_step_outcomes_total",
			metric.WithDescription("Step invocations by final outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_outcomes: "+err.Error())
		}

		e.stepRetries, err = meter.Int64Counter("stepgrid_step_retries_total",
			metric.WithDescription("Retried step attempts"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_retries: "+err.Error())
		}

		if len(initErrors) > 0 {
			logger.Error("Failed to initialize some executor metrics.", "errors", initErrors)
		}
	})
}

// Breaker returns the breaker for a step name, or nil when the step has
// never run with a breaker configured.
func (e *Executor) Breaker(name string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breakers[name]
}

func (e *Executor) breakerFor(s *step.Step) *Breaker {
	cfg := s.Policy().CircuitBreaker
	if cfg == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[s.Name()]
	if !ok {
		b = NewBreaker(*cfg, e.now)
		e.breakers[s.Name()] = b
	}
	return b
}

func (e *Executor) limiterFor(s *step.Step) *rate.Limiter {
	cfg := s.Policy().RateLimit
	if cfg == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[s.Name()]
	if !ok {
		l = rate.NewLimiter(rate.Limit(cfg.PerSecond()), max(cfg.Burst, 1))
		e.limiters[s.Name()] = l
	}
	return l
}

// Invoke runs s with args and returns its outcome. Invoke never panics on
// behalf of the step: panics become a *PanicError result.
func (e *Executor) Invoke(ctx context.Context, s *step.Step, args step.Args) Result {
	logger := ctxlog.FromContext(ctx).With("step", s.Name())
	e.initMetrics(logger)

	ctx, span := tracer.Start(ctx, "stepgrid.Step",
		trace.WithAttributes(
			attribute.String("stepgrid.step", s.Name()),
			attribute.String("stepgrid.cache", s.Cache().String()),
			attribute.Int("stepgrid.max_attempts", s.Retry().Attempts()),
		),
	)
	defer span.End()

	ctx = step.WithReporter(ctx, step.ReporterFunc(func(key string, value any) {
		e.hub.Notify(ctx, observer.Event{Kind: observer.StepReport, Step: s.Name(), Status: node.StatusRunning, Key: key, Value: value})
	}))

	res := Result{Step: s.Name(), Source: SourceExecution, StartedAt: e.now()}
	value, attempts, err := e.retry(ctx, logger, s, args)
	res.Attempts = attempts

	if err != nil && s.HasFallback() {
		logger.Warn("Attempts exhausted, using fallback.", "attempts", attempts, "error", err)
		fbValue, fbErr := e.call(ctx, s, args, s.InvokeFallback)
		if fbErr == nil {
			value, err = fbValue, nil
			res.Source = SourceFallback
		} else {
			err = errors.Join(err, fmt.Errorf("fallback: %w", fbErr))
		}
	}

	res.FinishedAt = e.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	outcome := "success"
	if err != nil {
		res.Status = node.StatusFailed
		res.Err = err
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		res.Status = node.StatusSuccess
		res.Success = true
		res.Value = value
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Int("stepgrid.attempts", attempts), attribute.String("stepgrid.source", string(res.Source)))

	attrs := metric.WithAttributes(attribute.String("step", s.Name()), attribute.String("outcome", outcome))
	if e.stepLatency != nil {
		e.stepLatency.Record(ctx, res.Duration.Seconds(), attrs)
	}
	if e.stepOutcomes != nil {
		e.stepOutcomes.Add(ctx, 1, attrs)
	}

	e.hub.Notify(ctx, observer.Event{
		Kind:     observer.StepFinished,
		Step:     s.Name(),
		Status:   res.Status,
		Attempt:  attempts,
		Duration: res.Duration,
		Err:      res.Err,
	})
	return res
}

// retry runs the attempt loop and returns the value, the number of calls
// made to the step, and the final error.
func (e *Executor) retry(ctx context.Context, logger *slog.Logger, s *step.Step, args step.Args) (any, int, error) {
	policy := s.Retry()
	schedule := policy.Schedule()
	breaker := e.breakerFor(s)
	limiter := e.limiterFor(s)
	hook := statusHook(ctx)

	calls := 0
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts(); attempt++ {
		if breaker != nil && !breaker.Allow() {
			logger.Warn("Circuit open, rejecting call.", "attempt", attempt)
			err := fmt.Errorf("step '%s': %w", s.Name(), ErrCircuitOpen)
			if lastErr != nil {
				err = errors.Join(lastErr, err)
			}
			return nil, calls, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, calls, fmt.Errorf("step '%s' rate limit wait: %w", s.Name(), err)
			}
		}

		calls++
		hook(node.StatusRunning)
		e.hub.Notify(ctx, observer.Event{Kind: observer.StepStarted, Step: s.Name(), Status: node.StatusRunning, Attempt: attempt})
		logger.Debug("Invoking step.", "attempt", attempt)

		value, err := e.call(ctx, s, args, s.Invoke)
		if breaker != nil {
			breaker.Record(err == nil)
		}
		if err == nil {
			return value, calls, nil
		}
		lastErr = &StepExecutionError{Step: s.Name(), Attempt: attempt, Err: err}

		if attempt == policy.Attempts() || !policy.Retryable(err) {
			break
		}

		var delay time.Duration
		if schedule != nil {
			delay = schedule.NextBackOff()
			if delay == backoff.Stop {
				break
			}
		}
		if e.stepRetries != nil {
			e.stepRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("step", s.Name())))
		}
		hook(node.StatusRetrying)
		e.hub.Notify(ctx, observer.Event{Kind: observer.StepRetrying, Step: s.Name(), Status: node.StatusRetrying, Attempt: attempt, Err: err})
		logger.Warn("Step attempt failed, backing off.", "attempt", attempt, "delay", delay, "error", err)

		if err := e.sleep(ctx, delay); err != nil {
			return nil, calls, errors.Join(lastErr, err)
		}
	}
	return nil, calls, lastErr
}

// call runs fn once, enforcing the step timeout and recovering panics.
func (e *Executor) call(ctx context.Context, s *step.Step, args step.Args, fn step.Func) (any, error) {
	timeout := s.Timeout()
	if timeout <= 0 {
		return protect(ctx, s.Name(), fn, args)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := protect(ctx, s.Name(), fn, args)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Step: s.Name(), Timeout: timeout}
		}
		return o.value, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Step: s.Name(), Timeout: timeout}
		}
		return nil, ctx.Err()
	}
}

func protect(ctx context.Context, name string, fn step.Func, args step.Args) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, step.Permanent(&PanicError{Step: name, Value: r})
		}
	}()
	return fn(ctx, args)
}
