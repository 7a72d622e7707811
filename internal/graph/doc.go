// Package graph turns a declared list of steps into an immutable dependency
// graph and answers the structural questions the pipeline scheduler asks.
//
// # How Edges Are Derived
//
// Steps never name each other. Each step declares the assets it consumes
// (inputs) and produces (outputs); Build indexes every output by producer
// and draws an edge producer → consumer for every input that has one:
//
//	load  (outputs: raw)          ─┐
//	clean (inputs: raw, outputs: x)◄┘──► square (inputs: x)
//
// Inputs with no producer are external inputs, supplied by the run's
// parameter context instead of another step.
//
// # Guarantees
//
//   - **Single producer:** an asset produced by two steps is rejected with
//     DuplicateProducerError.
//   - **Acyclic:** a three-color depth-first search rejects cycles with a
//     CyclicGraphError naming every step on the cycle in order.
//   - **Deterministic:** TopologicalOrder, ReadySet, Ancestors and
//     Descendants all break ties by declaration order, so the same step
//     list always yields the same answers.
//
// # Thread-Safety
//
// A Graph is never modified after Build returns and may be shared freely
// between goroutines and runs.
package graph
