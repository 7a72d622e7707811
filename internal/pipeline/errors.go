package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/stepgrid/internal/params"
)

// OutputError reports a step whose return value does not match its
// declared outputs.
type OutputError struct {
	Step       string
	Missing    []string
	Unexpected []string
	Reason     string
}

func (e *OutputError) Error() string {
	var parts []string
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing outputs: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "undeclared outputs: "+strings.Join(e.Unexpected, ", "))
	}
	return fmt.Sprintf("step '%s' returned invalid outputs: %s", e.Step, strings.Join(parts, "; "))
}

// SkippedError is recorded for a step that never ran because Upstream
// failed.
type SkippedError struct {
	Step     string
	Upstream string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped '%s' due to upstream failure of '%s'", e.Step, e.Upstream)
}

// attributeMissing fills in the step name on missing-parameter errors,
// which the parameter context reports without one.
func attributeMissing(err error, stepName string) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var missing *params.MissingParameterError
		if errors.As(e, &missing) && missing.Step == "" {
			missing.Step = stepName
		}
	}
}
