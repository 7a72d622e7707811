// Package registry provides the glue between pipeline definitions and Go
// code.
//
// A Registry maps the handler names used in configuration (a step's `uses`
// and `fallback` attributes) to compiled step.Func values. Modules register
// their handlers at startup, after which the registry is validated against
// the loaded configuration so a misspelled handler fails before any step
// runs.
package registry
