// Package inmemorystore provides a thread-safe, in-memory implementation
// of the nodestore.Store interface. It is suitable for any run whose step
// outputs fit comfortably in memory, which is every local run.
package inmemorystore
