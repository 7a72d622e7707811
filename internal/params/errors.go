package params

import "fmt"

// MissingParameterError is returned when a required parameter is absent from
// every layer of a context and has no declared default.
type MissingParameterError struct {
	Name string
	Step string
}

func (e *MissingParameterError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step '%s': missing required parameter '%s'", e.Step, e.Name)
	}
	return fmt.Sprintf("missing required parameter '%s'", e.Name)
}
