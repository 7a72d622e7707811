package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the model's field constraints and the uniqueness of step
// names. Every violation is reported.
func Validate(m *Model) error {
	var problems []string

	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate configuration: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	seen := make(map[string]bool, len(m.Steps))
	for _, s := range m.Steps {
		if s == nil || s.Name == "" {
			continue
		}
		if seen[s.Name] {
			problems = append(problems, fmt.Sprintf("step '%s' is declared more than once", s.Name))
		}
		seen[s.Name] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Model.")
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got '%v'", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed the '%s' check (value '%v')", field, fe.ActualTag(), fe.Value())
	}
}
