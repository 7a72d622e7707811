package app

import (
	"errors"
	"fmt"
)

// Config holds the process-level settings of an App. Values that are not
// zero override the loaded pipeline definition.
type Config struct {
	// Paths are .hcl files or directories holding the pipeline definition.
	Paths []string
	// ParamsFile is an optional .hcl or .yaml file of base parameters.
	ParamsFile string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	Workers         int
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level '%s': must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Workers < 0 {
		return nil, errors.New("workers must not be negative")
	}
	return &cfg, nil
}
