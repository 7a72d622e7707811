// Package env_vars provides the `env_vars` step handler, which exposes the
// process environment to a pipeline.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Environ lists the environment as KEY=value pairs. Nil means
	// os.Environ.
	Environ func() []string
}

// Input holds the handler's arguments.
type Input struct {
	Prefix *string `cty:"prefix"`
}

// EnvVars returns the environment as a map. With a `prefix` argument only
// matching variables are returned, with the prefix stripped.
func (m *Module) EnvVars(_ context.Context, args step.Args) (any, error) {
	environ := m.Environ
	if environ == nil {
		environ = os.Environ
	}
	var in Input
	if err := args.Decode(&in); err != nil {
		return nil, step.Permanent(err)
	}
	prefix := ""
	if in.Prefix != nil {
		prefix = *in.Prefix
	}

	envMap := make(map[string]any)
	for _, e := range environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], prefix) {
			continue
		}
		envMap[strings.TrimPrefix(pair[0], prefix)] = pair[1]
	}
	return envMap, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("env_vars", m.EnvVars)
}
