package config

import (
	"context"
	"time"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files or directories and
	// translates it into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified representation of a pipeline definition and the
// infrastructure it runs on.
type Model struct {
	Engine    Engine
	Cache     Cache
	Artifacts *Artifacts
	Metadata  *Metadata
	Observers []*Observer `validate:"dive,required"`
	Params    map[string]any
	Steps     []*Step `validate:"dive,required"`
}

// Engine holds run-wide settings.
type Engine struct {
	Name            string `validate:"required"`
	Workers         int    `validate:"gte=0"`
	HealthcheckPort int    `validate:"gte=0,lte=65535"`
	LogLevel        string `validate:"omitempty,oneof=debug info warn error"`
	LogFormat       string `validate:"omitempty,oneof=text json"`
}

// Cache selects and configures the cache backend.
type Cache struct {
	Backend    string `validate:"oneof=memory badger remote none"`
	Path       string `validate:"required_if=Backend badger InMemory false"`
	InMemory   bool
	SyncWrites bool
	TTL        time.Duration `validate:"gte=0"`
	Codec      string        `validate:"omitempty,oneof=msgpack json"`
	Bucket     *Bucket       `validate:"required_if=Backend remote"`
}

// Bucket configures an object storage bucket.
type Bucket struct {
	Backend         string `validate:"oneof=minio gcs memory"`
	Endpoint        string `validate:"required_if=Backend minio"`
	AccessKey       string
	SecretKey       string
	Region          string
	UseSSL          bool
	Name            string `validate:"required"`
	Prefix          string
	CredentialsFile string
}

// Artifacts configures where freshly computed outputs are saved.
type Artifacts struct {
	Codec  string  `validate:"omitempty,oneof=msgpack json"`
	Bucket *Bucket `validate:"required"`
}

// Metadata configures where finalized runs are recorded.
type Metadata struct {
	Backend string `validate:"oneof=postgres memory"`
	URL     string `validate:"required_if=Backend postgres"`
}

// Observer configures one event sink.
type Observer struct {
	Type string `validate:"oneof=log socketio influx"`

	// socketio
	URL       string `validate:"required_unless=Type log"`
	Namespace string
	Event     string

	// influx
	Token  string
	Org    string `validate:"required_if=Type influx"`
	Bucket string `validate:"required_if=Type influx"`
}

// Step is a declared pipeline step bound to a registered handler.
type Step struct {
	Name        string `validate:"required"`
	Uses        string `validate:"required"`
	Description string
	Version     string
	Inputs      []string
	Outputs     []string
	// Params maps parameter names to defaults. A nil default makes the
	// parameter required.
	Params    map[string]any
	Cache     string        `validate:"omitempty,oneof=code_hash input_hash none"`
	Timeout   time.Duration `validate:"gte=0"`
	Resources map[string]string
	Tags      []string
	Fallback  string

	Retry          *Retry
	CircuitBreaker *CircuitBreaker
	RateLimit      *RateLimit
}

// Retry is the retry policy of a step.
type Retry struct {
	Attempts int `validate:"gte=1"`
	Backoff  *Backoff
}

// Backoff is the delay schedule between attempts.
type Backoff struct {
	Strategy string        `validate:"omitempty,oneof=exponential constant jittered"`
	Initial  time.Duration `validate:"gte=0"`
	Max      time.Duration `validate:"gte=0"`
	Jitter   float64       `validate:"gte=0,lte=1"`
}

// CircuitBreaker is the per-step breaker configuration.
type CircuitBreaker struct {
	FailureThreshold int           `validate:"gte=1"`
	RecoveryTimeout  time.Duration `validate:"gt=0"`
}

// RateLimit bounds how often a step may start.
type RateLimit struct {
	Limit float64       `validate:"gt=0"`
	Per   time.Duration `validate:"gte=0"`
	Burst int           `validate:"gte=0"`
}

// Default returns a model with every setting at its default.
func Default() *Model {
	return &Model{
		Engine: Engine{Name: "default"},
		Cache:  Cache{Backend: "memory", Codec: "msgpack"},
		Params: make(map[string]any),
	}
}

// Step returns the declared step called name.
func (m *Model) Step(name string) (*Step, bool) {
	for _, s := range m.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
