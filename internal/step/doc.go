// Package step defines the immutable descriptor of a single unit of work in
// a pipeline: its callable, the assets it consumes and produces, the
// parameters it reads from the run context, and the execution policy
// (caching, retry, timeout, circuit breaking, rate limiting) applied to it.
//
// A Step is constructed once with New and never changes afterwards. Every
// accessor hands out copies, so a Step can be shared between pipelines and
// concurrent runs without synchronization.
package step
