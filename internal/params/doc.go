// Package params holds the hierarchical parameter context a pipeline run
// resolves step parameters from.
//
// A Context is a read-only mapping from parameter name to value with an
// optional parent. Lookups walk from the child towards the root, so values
// set on a child shadow those of its ancestors. Contexts are never mutated
// after construction; WithOverrides derives a new child instead, which makes
// a single Context safe to share between concurrently running steps.
package params
