// Package print provides the `print` step handler, which writes its value
// argument to an output stream.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines. Nil means os.Stdout.
	Out io.Writer
}

// Print writes every argument, sorted by name, and returns them unchanged
// so downstream steps can consume the printed value.
func (m *Module) Print(ctx context.Context, args step.Args) (any, error) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	ctxlog.FromContext(ctx).Info("Printing input", "args", len(args))

	if len(args) == 0 {
		fmt.Fprintln(out, "      (null)")
		return nil, nil
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(out, "      %s = %v\n", k, args[k])
	}
	if v, ok := args["value"]; ok && len(args) == 1 {
		return v, nil
	}
	return map[string]any(args), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("print", m.Print)
}
