package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/stepgrid/internal/config"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
)

// Validate checks that every handler the model refers to is registered.
func (r *Registry) Validate(ctx context.Context, m *config.Model) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, s := range m.Steps {
		if _, ok := r.handlers[s.Uses]; !ok {
			errs = append(errs, fmt.Sprintf("step '%s': handler '%s' is not registered", s.Name, s.Uses))
		}
		if s.Fallback == "" {
			continue
		}
		if _, ok := r.handlers[s.Fallback]; !ok {
			errs = append(errs, fmt.Sprintf("step '%s': fallback handler '%s' is not registered", s.Name, s.Fallback))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "handlers", len(r.handlers), "steps", len(m.Steps))
	return nil
}
