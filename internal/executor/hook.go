package executor

import (
	"context"

	"github.com/specialistvlad/stepgrid/internal/node"
)

// StatusHook is told about every status a step passes through inside
// Invoke: Running before each attempt, Retrying between attempts.
type StatusHook func(status node.Status)

type hookKey struct{}

// WithStatusHook returns a context whose invocations report to hook.
func WithStatusHook(ctx context.Context, hook StatusHook) context.Context {
	return context.WithValue(ctx, hookKey{}, hook)
}

func statusHook(ctx context.Context) StatusHook {
	if h, ok := ctx.Value(hookKey{}).(StatusHook); ok && h != nil {
		return h
	}
	return func(node.Status) {}
}
