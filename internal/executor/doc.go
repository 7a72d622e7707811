/*
Package executor invokes a single step with its execution policy applied.

A call to Invoke makes up to the step's retry bound of attempts. Each attempt
passes through, in order:

  - **Circuit breaker**: when the step's breaker is open the attempt fails
    with ErrCircuitOpen without calling the step.
  - **Rate limit**: the attempt waits for a token from the step's limiter.
  - **Timeout**: an attempt that outlives the step's timeout fails with a
    *TimeoutError. The step's function keeps its context deadline and
    should return promptly once it expires.

Between attempts the executor sleeps according to the step's backoff
schedule. The sleep blocks only the calling goroutine. Once attempts are
exhausted a configured fallback supplies the result.

# Observers

Invoke reports StepStarted, StepRetrying and StepFinished events, and
forwards anything the step passes to step.Report as StepReport events. The
executor never persists anything itself.

# Thread-Safety

An Executor is safe for concurrent use. Breakers and rate limiters are
created once per step name and live as long as the Executor.
*/
package executor
