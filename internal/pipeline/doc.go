/*
Package pipeline orchestrates a set of steps: it builds their dependency
graph, resolves each step's arguments from a parameter context and upstream
outputs, consults the cache, hands misses to the executor and assembles the
outcome into a Run.

# Scheduling

A coordinator goroutine owns all scheduling state. It asks the graph for the
ready set, queues newly ready steps and hands them to a fixed pool of
workers. Whenever a worker reports a terminal result the ready set is
recomputed, so a step starts as soon as its own producers finish rather than
when a whole wave completes.

A step whose result is Failed poisons its branch: every descendant is marked
Skipped and never started. Independent branches keep running.

# Cancellation

Cancelling the context passed to Run stops dispatching immediately. Steps
already handed to a worker finish under a context detached from the
cancellation; steps never dispatched stay Pending. The Run is marked
Cancelled, which is distinct from failure.

# Thread-Safety

A Pipeline may run concurrently with itself. Each Run has its own state
store; the cache is the only structure shared between runs.
*/
package pipeline
