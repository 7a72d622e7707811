package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a file may contain.
type fileRoot struct {
	Pipeline  *Pipeline   `hcl:"pipeline,block"`
	Cache     *Cache      `hcl:"cache,block"`
	Params    *Params     `hcl:"params,block"`
	Artifacts *Artifacts  `hcl:"artifacts,block"`
	Metadata  *Metadata   `hcl:"metadata,block"`
	Observers []*Observer `hcl:"observer,block"`
	Steps     []*Step     `hcl:"step,block"`
	Remain    hcl.Body    `hcl:",remain"`
}

// Pipeline is the HCL schema for the `pipeline` block.
type Pipeline struct {
	Name            string `hcl:"name,label"`
	Workers         int    `hcl:"workers,optional"`
	HealthcheckPort int    `hcl:"healthcheck_port,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	LogFormat       string `hcl:"log_format,optional"`
}

// Cache is the HCL schema for the `cache` block.
type Cache struct {
	Backend    string  `hcl:"backend,optional"`
	Path       string  `hcl:"path,optional"`
	InMemory   bool    `hcl:"in_memory,optional"`
	SyncWrites bool    `hcl:"sync_writes,optional"`
	TTL        string  `hcl:"ttl,optional"`
	Codec      string  `hcl:"codec,optional"`
	Bucket     *Bucket `hcl:"bucket,block"`
}

// Params is the HCL schema for the `params` block: free-form attributes.
type Params struct {
	Body hcl.Body `hcl:",remain"`
}

// Bucket is the HCL schema for a nested `bucket` block.
type Bucket struct {
	Backend         string `hcl:"backend,optional"`
	Endpoint        string `hcl:"endpoint,optional"`
	AccessKey       string `hcl:"access_key,optional"`
	SecretKey       string `hcl:"secret_key,optional"`
	Region          string `hcl:"region,optional"`
	UseSSL          bool   `hcl:"use_ssl,optional"`
	Name            string `hcl:"name"`
	Prefix          string `hcl:"prefix,optional"`
	CredentialsFile string `hcl:"credentials_file,optional"`
}

// Artifacts is the HCL schema for the `artifacts` block.
type Artifacts struct {
	Codec  string  `hcl:"codec,optional"`
	Bucket *Bucket `hcl:"bucket,block"`
}

// Metadata is the HCL schema for the `metadata` block.
type Metadata struct {
	Backend string `hcl:"backend,optional"`
	URL     string `hcl:"url,optional"`
}

// Observer is the HCL schema for an `observer` block.
type Observer struct {
	Type      string `hcl:"type,label"`
	URL       string `hcl:"url,optional"`
	Namespace string `hcl:"namespace,optional"`
	Event     string `hcl:"event,optional"`
	Token     string `hcl:"token,optional"`
	Org       string `hcl:"org,optional"`
	Bucket    string `hcl:"bucket,optional"`
}

// Step is the HCL schema for a `step` block.
type Step struct {
	Name        string            `hcl:"name,label"`
	Uses        string            `hcl:"uses"`
	Description string            `hcl:"description,optional"`
	Version     string            `hcl:"version,optional"`
	Inputs      []string          `hcl:"inputs,optional"`
	Outputs     []string          `hcl:"outputs,optional"`
	Params      hcl.Expression    `hcl:"params,optional"`
	Cache       string            `hcl:"cache,optional"`
	Timeout     string            `hcl:"timeout,optional"`
	Resources   map[string]string `hcl:"resources,optional"`
	Tags        []string          `hcl:"tags,optional"`
	Fallback    string            `hcl:"fallback,optional"`

	Retry          *Retry          `hcl:"retry,block"`
	CircuitBreaker *CircuitBreaker `hcl:"circuit_breaker,block"`
	RateLimit      *RateLimit      `hcl:"rate_limit,block"`
}

// Retry is the HCL schema for a step's `retry` block.
type Retry struct {
	Attempts int      `hcl:"attempts"`
	Backoff  *Backoff `hcl:"backoff,block"`
}

// Backoff is the HCL schema for a `backoff` block.
type Backoff struct {
	Strategy string  `hcl:"strategy,optional"`
	Initial  string  `hcl:"initial,optional"`
	Max      string  `hcl:"max,optional"`
	Jitter   float64 `hcl:"jitter,optional"`
}

// CircuitBreaker is the HCL schema for a `circuit_breaker` block.
type CircuitBreaker struct {
	FailureThreshold int    `hcl:"failure_threshold"`
	RecoveryTimeout  string `hcl:"recovery_timeout"`
}

// RateLimit is the HCL schema for a `rate_limit` block.
type RateLimit struct {
	Limit float64 `hcl:"limit"`
	Per   string  `hcl:"per,optional"`
	Burst int     `hcl:"burst,optional"`
}
