// Package resilience provides the resilience patterns the orchestrator wraps
// around every upstream call.
//
// It implements common reliability patterns that help the gateway handle
// upstream failures gracefully. The orchestrator composes the patterns
// directly rather than through a fixed pipeline, since the effective
// deadline for a call must span every retry attempt as a single absolute
// timeout rather than being reapplied per attempt.
//
// # Ecosystem Position
//
// resilience sits between the orchestrator's routing layer and the adapters
// that actually dial an upstream:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Upstream Call Execution Flow                 │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│   orchestrator                resilience              upstream  │
//	│   ┌──────┐    ┌─────────┐    ┌───────────────────┐  ┌─────────┐ │
//	│   │ Tool │───▶│Bulkhead │───▶│ Timeout (outer,    │─▶│ Adapter │ │
//	│   │ Call │    │(process │    │ one absolute       │  │ (HTTP)  │ │
//	│   └──────┘    │  wide)  │    │ deadline)          │  └─────────┘ │
//	│                └─────────┘    │  ┌──────┐          │             │
//	│                                │  │Retry │          │             │
//	│                                │  ├──────┤          │             │
//	│                                │  │Circuit│         │             │
//	│                                │  └──────┘          │             │
//	│                                └───────────────────┘             │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Resilience Patterns
//
// The package provides four core patterns:
//
//   - [CircuitBreaker]: Prevents cascading failures by stopping requests to
//     a failing upstream after a threshold is reached. Transitions through
//     Closed → Open → HalfOpen states.
//
//   - [Retry]: Automatically retries failed operations with configurable
//     backoff strategies (exponential, linear, constant) and jitter.
//
//   - [Bulkhead]: Semaphore-based concurrency limiting. The orchestrator uses
//     one bulkhead process-wide (maxConcurrent); parallel fan-out batches are
//     capped at maxParallel by a golang.org/x/sync semaphore, not a Bulkhead.
//
//   - [Timeout]: Context-based timeout to ensure a call completes within the
//     effective deadline (min of the global default and any per-call
//     override).
//
// # Quick Start
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 100 * time.Millisecond,
//	})
//	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: 5 * time.Second})
//
//	err := timeout.Execute(ctx, func(ctx context.Context) error {
//	    return retry.Execute(ctx, func(ctx context.Context) error {
//	        return cb.Execute(ctx, func(ctx context.Context) error {
//	            return adapter.CallTool(ctx, "getQueue", nil)
//	        })
//	    })
//	})
//
// # Execution Order
//
// The orchestrator composes patterns in this order (outermost first):
//
//  1. Bulkhead - limits concurrency, acquired once per CallTool invocation
//  2. Timeout - one absolute deadline wrapping the entire retry chain
//  3. Retry - retries on failure, bounded by the outer timeout
//  4. Circuit Breaker - rejects immediately once open, innermost
//
// This differs from a fixed bulkhead→breaker→retry→timeout(innermost)
// pipeline: reapplying the timeout inside each retry attempt would let a
// slow-but-retryable upstream consume a multiple of the configured deadline
// across attempts, which the timeout policy forbids.
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//
//   - [CircuitBreaker]: Execute() and State() are mutex-protected; Reset() is safe
//   - [Retry]: Execute() is stateless and safe for concurrent use
//   - [Bulkhead]: Acquire(), Release(), Execute() use channel-based semaphore
//   - [Timeout]: Execute() is stateless and safe for concurrent use
//
// # Error Handling
//
// The package defines these sentinel errors (use errors.Is for checking):
//
//   - [ErrCircuitOpen]: Circuit breaker is in open state, rejecting requests
//   - [ErrMaxRetriesExceeded]: Names exhausted retry attempts; Retry.Execute
//     returns the last operation error instead of this sentinel
//   - [ErrBulkheadFull]: Bulkhead at maximum concurrency
//   - [ErrTimeout]: Operation exceeded the effective deadline
//
// Example error handling:
//
//	err := timeout.Execute(ctx, operation)
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//	    // Upstream is unhealthy, breaker is protecting it from a request storm.
//	    logger.Warn(ctx, "circuit breaker open")
//	}
//
// # Callbacks and Observability
//
// Patterns support callbacks for observability integration:
//
//   - CircuitBreakerConfig.OnStateChange: Called on state transitions; the
//     orchestrator uses this to emit breaker-transition stats and log lines.
//   - RetryConfig.OnRetry: Called before each retry attempt.
//   - CircuitBreakerConfig.IsFailure: Custom failure classification (the
//     orchestrator leaves it unset, so every error returned by the adapter
//     call counts as a breaker failure).
//   - RetryConfig.RetryIf: Custom retry decision logic (mirrors the
//     retryable ErrorKinds from upstream.ErrorKind).
//
// # Integration
//
// resilience is consumed directly by the orchestrator package, which wires
// one Bulkhead process-wide and one CircuitBreaker plus Retry per registered
// upstream adapter, and by health, which treats CircuitBreaker.State() as an
// input to its aggregate status.
package resilience
