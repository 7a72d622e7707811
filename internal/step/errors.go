package step

import "fmt"

// ValidationError describes an invalid step declaration.
type ValidationError struct {
	Step   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("invalid step: %s", e.Reason)
	}
	return fmt.Sprintf("invalid step '%s': %s", e.Step, e.Reason)
}
