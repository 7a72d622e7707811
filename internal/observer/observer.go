package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
)

// Observer receives events. Implementations must be safe for concurrent
// use: independent steps report from different workers.
type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnEvent(ctx context.Context, e Event) { f(ctx, e) }

// Hub fans events out to every registered observer.
type Hub struct {
	mu        sync.RWMutex
	observers []Observer
	now       func() time.Time
}

// NewHub creates a hub with the given observers.
func NewHub(observers ...Observer) *Hub {
	h := &Hub{now: time.Now}
	for _, o := range observers {
		h.Register(o)
	}
	return h
}

// Register adds o. Nil observers are ignored.
func (h *Hub) Register(o Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Notify stamps e and delivers it to every observer in registration order.
// A panicking observer is logged and does not affect the others. Notify on
// a nil hub is a no-op.
func (h *Hub) Notify(ctx context.Context, e Event) {
	if h == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = h.now()
	}
	if run, ok := RunFrom(ctx); ok {
		if e.RunID == "" {
			e.RunID = run.ID
		}
		if e.Pipeline == "" {
			e.Pipeline = run.Pipeline
		}
	}
	h.mu.RLock()
	observers := h.observers
	h.mu.RUnlock()

	for _, o := range observers {
		deliver(ctx, o, e)
	}
}

func deliver(ctx context.Context, o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Observer panicked.", "event", e.Kind, "step", e.Step, "panic", r)
		}
	}()
	o.OnEvent(ctx, e)
}

// Run identifies the run events belong to.
type Run struct {
	ID       string
	Pipeline string
}

type runKey struct{}

// WithRun returns a context whose events are attributed to run.
func WithRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// RunFrom returns the run carried by ctx.
func RunFrom(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runKey{}).(Run)
	return run, ok
}

// LogObserver writes every event to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging to logger, or to the logger
// carried by each event's context when logger is nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) OnEvent(ctx context.Context, e Event) {
	logger := l.logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	logger = logger.With("run_id", e.RunID)

	switch e.Kind {
	case RunStarted:
		logger.Info("Run started.", "pipeline", e.Pipeline)
	case RunFinished:
		if e.Err != nil {
			logger.Error("Run finished.", "pipeline", e.Pipeline, "duration", e.Duration, "error", e.Err)
			return
		}
		logger.Info("Run finished.", "pipeline", e.Pipeline, "duration", e.Duration)
	case StepStarted:
		logger.Info("▶️ Step started.", "step", e.Step, "attempt", e.Attempt)
	case StepRetrying:
		logger.Warn("Step failed, retrying.", "step", e.Step, "attempt", e.Attempt, "error", e.Err)
	case StepFinished:
		if e.Err != nil {
			logger.Error("❌ Step failed.", "step", e.Step, "attempts", e.Attempt, "duration", e.Duration, "error", e.Err)
			return
		}
		logger.Info("✅ Step finished.", "step", e.Step, "attempts", e.Attempt, "duration", e.Duration)
	case StepCached:
		logger.Info("Step served from cache.", "step", e.Step)
	case StepSkipped:
		logger.Warn("Step skipped.", "step", e.Step, "reason", e.Err)
	case StepReport:
		logger.Debug("Step report.", "step", e.Step, "key", e.Key, "value", e.Value)
	}
}

// Recorder keeps every event it receives. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of events recorded for step, in order.
func (r *Recorder) Kinds(step string) []Kind {
	var kinds []Kind
	for _, e := range r.Events() {
		if e.Step == step {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}
