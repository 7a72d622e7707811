// Package config defines the format-agnostic configuration model for
// stepgrid: engine settings, the cache, stores, observers and the declared
// steps of a pipeline. It also holds the Loader interface implemented by
// format-specific packages such as hcl_adapter.
//
// A Model carries evaluated Go values only. Loaders parse and evaluate their
// source format; the app package turns a validated Model into a pipeline.
package config
