// Package app contains the core application logic. It turns a loaded
// configuration into a runnable pipeline: handlers from the registry, the
// cache backend, artifact and metadata stores, observers and the health
// check server. It is decoupled from any specific entrypoint like a CLI.
package app
