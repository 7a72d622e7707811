package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// CountingModule registers handlers that record every invocation:
//
//	echo  returns its "value" argument, or all arguments when there is no "value"
//	sum   adds every numeric argument
//	fail  always fails with a permanent error
//	flaky fails until it has been called "succeed_after" times
//	sleep waits for "duration" or until cancelled
type CountingModule struct {
	mu    sync.Mutex
	calls map[string]int
	args  []step.Args
}

var _ registry.Module = (*CountingModule)(nil)

// NewCountingModule creates an empty CountingModule.
func NewCountingModule() *CountingModule {
	return &CountingModule{calls: make(map[string]int)}
}

func (m *CountingModule) record(handler string, args step.Args) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[handler]++
	m.args = append(m.args, args)
	return m.calls[handler]
}

// Calls returns how often handler was invoked.
func (m *CountingModule) Calls(handler string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[handler]
}

// Args returns the arguments of every invocation in call order.
func (m *CountingModule) Args() []step.Args {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]step.Args, len(m.args))
	copy(out, m.args)
	return out
}

// Register registers the module's handlers.
func (m *CountingModule) Register(r *registry.Registry) {
	r.Register("echo", func(_ context.Context, args step.Args) (any, error) {
		m.record("echo", args)
		if v, ok := args["value"]; ok {
			return v, nil
		}
		return map[string]any(args), nil
	})
	r.Register("sum", func(_ context.Context, args step.Args) (any, error) {
		m.record("sum", args)
		total := 0.0
		for name := range args {
			f, err := args.Float(name)
			if err != nil {
				return nil, step.Permanent(err)
			}
			total += f
		}
		return total, nil
	})
	r.Register("fail", func(_ context.Context, args step.Args) (any, error) {
		m.record("fail", args)
		return nil, step.Permanent(errors.New("failed on purpose"))
	})
	r.Register("flaky", func(_ context.Context, args step.Args) (any, error) {
		n := m.record("flaky", args)
		after, err := args.Int("succeed_after")
		if err != nil {
			return nil, step.Permanent(err)
		}
		if n < after {
			return nil, errors.New("transient failure")
		}
		return n, nil
	})
	r.Register("sleep", func(ctx context.Context, args step.Args) (any, error) {
		m.record("sleep", args)
		s, err := args.String("duration")
		if err != nil {
			return nil, step.Permanent(err)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, step.Permanent(err)
		}
		select {
		case <-time.After(d):
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
