package step

import "context"

// Reporter receives intermediate values (metrics, progress) a step wants to
// surface while it runs.
type Reporter interface {
	Report(key string, value any)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(key string, value any)

func (f ReporterFunc) Report(key string, value any) { f(key, value) }

type reporterKey struct{}

type nopReporter struct{}

func (nopReporter) Report(string, any) {}

// WithReporter returns a context carrying r.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

// ReporterFrom returns the reporter injected into ctx, or one that drops
// every value.
func ReporterFrom(ctx context.Context) Reporter {
	if r, ok := ctx.Value(reporterKey{}).(Reporter); ok && r != nil {
		return r
	}
	return nopReporter{}
}

// Report is shorthand for ReporterFrom(ctx).Report(key, value).
func Report(ctx context.Context, key string, value any) {
	ReporterFrom(ctx).Report(key, value)
}
