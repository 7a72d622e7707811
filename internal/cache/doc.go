// Package cache memoizes step outputs under content-addressed keys.
//
// A key is derived from a step and its resolved arguments according to the
// step's cache strategy. Entries live in a pluggable Store: MemoryStore in
// this package, an on-disk BadgerDB store in badgerstore and a remote
// S3-compatible store in objectstore. Stores must be safe for concurrent
// use; the Cache adds per-step hit/miss accounting, invalidation and
// collapsing of concurrent misses on top.
//
// Store failures never fail a run. Lookup wraps them in *StoreError and the
// caller treats the lookup as a miss.
package cache
