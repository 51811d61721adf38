// Package orchestrator implements the sole entry point for tool execution:
// routing, timeouts, retries, circuit breaking, concurrency limiting, and
// parallel fan-out over the registered upstream adapters.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mediabridge/gatewayd/observe"
	"github.com/mediabridge/gatewayd/resilience"
	"github.com/mediabridge/gatewayd/upstream"
)

// bulkheadMaxWait is effectively unbounded: the real bound on how long a
// call waits for a permit is the caller's own context, which the Bulkhead
// also selects on. This mirrors the semaphore-acquire-until-ctx-done
// behavior the process-wide permit pool has always had.
const bulkheadMaxWait = 24 * time.Hour

// registration bundles an adapter with the breaker and retry state owned by
// the Orchestrator for its lifetime.
type registration struct {
	adapter upstream.Adapter
	breaker *resilience.CircuitBreaker
	retry   *resilience.Retry
	enabled bool
}

// Orchestrator owns every registered Adapter and its CircuitBreaker. It is
// the only component in the gateway permitted to invoke an Adapter.
type Orchestrator struct {
	cfg Config

	mu   sync.RWMutex // guards regs: reads during a call take RLock, registration takes Lock
	regs map[upstream.Kind]*registration

	bulkhead *resilience.Bulkhead // process-wide maxConcurrent permits (§4.3)

	stats      *Stats
	middleware *observe.Middleware
	logger     observe.Logger
	toolCache  *upstream.ToolCache
}

// New constructs an Orchestrator. logger/tracer/metrics may be nil: a nil
// logger is replaced by an info-level observe.NewLogger, and a nil tracer or
// metrics by a no-op implementation.
func New(cfg Config, tracer observe.Tracer, metrics observe.Metrics, logger observe.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	if tracer == nil {
		tracer = observe.NewNoopTracer()
	}
	if metrics == nil {
		metrics = observe.NewNoopMetrics()
	}
	return &Orchestrator{
		cfg:  cfg,
		regs: make(map[upstream.Kind]*registration),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       bulkheadMaxWait,
		}),
		stats:      newStats(),
		middleware: observe.NewMiddleware(tracer, metrics, logger),
		logger:     logger,
	}
}

// WithToolCache attaches a shared ToolCache used by ListTools. Optional:
// without one, ListTools calls straight through to the adapter every time.
func (o *Orchestrator) WithToolCache(tc *upstream.ToolCache) *Orchestrator {
	o.toolCache = tc
	return o
}

// ListTools returns the tool vocabulary advertised by the registered,
// enabled adapter for kind, served from the attached ToolCache when present.
func (o *Orchestrator) ListTools(ctx context.Context, kind upstream.Kind) ([]string, error) {
	reg, ok := o.lookup(kind)
	if !ok {
		return nil, fmt.Errorf("orchestrator: upstream %s not configured or disabled", kind)
	}
	if o.toolCache != nil {
		return o.toolCache.ListTools(ctx, reg.adapter)
	}
	return reg.adapter.ListTools(ctx)
}

// RegisterAdapter binds one Adapter to the Orchestrator. At most one Adapter
// per UpstreamKind may be registered (invariant, spec §3); registering a
// second adapter for an already-registered kind is an error.
func (o *Orchestrator) RegisterAdapter(adapter upstream.Adapter, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	kind := adapter.Kind()
	if _, exists := o.regs[kind]; exists {
		return fmt.Errorf("orchestrator: adapter for %s already registered", kind)
	}

	breakerKind := kind
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:         o.cfg.BreakerFailureThreshold,
		ResetTimeout:        o.cfg.BreakerOpenDuration,
		HalfOpenMaxRequests: o.cfg.BreakerHalfOpenRequired,
		OnStateChange: func(from, to resilience.State) {
			o.stats.recordBreakerTransition(breakerKind)
			o.logger.Info(context.Background(), "breaker state change",
				observe.Field{Key: "upstream", Value: breakerKind.String()},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})

	// Retry policy per spec §4.3: Transport/TransientServer retry up to
	// maxRetries with backoff baseDelay·2^(attempt-1); a tripped breaker is
	// never retried (ErrCircuitOpen short-circuits immediately).
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  o.cfg.MaxRetries + 1,
		InitialDelay: 100 * time.Millisecond,
		Strategy:     resilience.BackoffExponential,
		RetryIf: func(err error) bool {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return false
			}
			return classifyErr(err).Retryable()
		},
	})

	o.regs[kind] = &registration{adapter: adapter, breaker: breaker, retry: retry, enabled: enabled}
	return nil
}

// BreakerSnapshot exposes the immutable breaker view used by health checks.
type BreakerSnapshot struct {
	Kind    upstream.Kind
	State   resilience.State
	Metrics resilience.CircuitBreakerMetrics
}

// BreakerSnapshots returns a snapshot of every registered breaker.
func (o *Orchestrator) BreakerSnapshots() []BreakerSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(o.regs))
	for kind, reg := range o.regs {
		out = append(out, BreakerSnapshot{
			Kind:    kind,
			State:   reg.breaker.State(),
			Metrics: reg.breaker.Metrics(),
		})
	}
	return out
}

// Stats returns a snapshot of the monotone call counters.
func (o *Orchestrator) Stats() Snapshot {
	return o.stats.Snapshot()
}

// ConnectAll connects every enabled adapter in parallel; one adapter's
// failure does not abort the others (mirrors health.Aggregator.CheckAll).
func (o *Orchestrator) ConnectAll(ctx context.Context) map[upstream.Kind]error {
	o.mu.RLock()
	regs := make(map[upstream.Kind]*registration, len(o.regs))
	for k, r := range o.regs {
		regs[k] = r
	}
	o.mu.RUnlock()

	results := make(map[upstream.Kind]error, len(regs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for kind, reg := range regs {
		if !reg.enabled {
			continue
		}
		wg.Add(1)
		go func(kind upstream.Kind, reg *registration) {
			defer wg.Done()
			err := reg.adapter.Connect(ctx)
			mu.Lock()
			results[kind] = err
			mu.Unlock()
		}(kind, reg)
	}
	wg.Wait()
	return results
}

// Shutdown disconnects every adapter. When graceful is true it first waits
// up to deadline for calls in flight at the moment Shutdown is invoked
// (tracked via the bulkhead) to drain before disconnecting; it does not
// itself reject calls made concurrently with Shutdown — that is the
// caller's responsibility (e.g. stop accepting new HTTP requests first).
func (o *Orchestrator) Shutdown(ctx context.Context, graceful bool, deadline time.Duration) error {
	if graceful {
		waitCtx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		// Acquiring every permit proves no call is in flight; release them
		// back immediately since we're shutting down, not calling anything.
		acquired := 0
		for acquired < o.cfg.MaxConcurrent {
			if err := o.bulkhead.Acquire(waitCtx); err != nil {
				break
			}
			acquired++
		}
		for i := 0; i < acquired; i++ {
			o.bulkhead.Release()
		}
	}

	o.mu.RLock()
	regs := make([]*registration, 0, len(o.regs))
	for _, r := range o.regs {
		regs = append(regs, r)
	}
	o.mu.RUnlock()

	var firstErr error
	for _, reg := range regs {
		if err := reg.adapter.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (o *Orchestrator) lookup(kind upstream.Kind) (*registration, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	reg, ok := o.regs[kind]
	if !ok || !reg.enabled {
		return nil, false
	}
	return reg, true
}

// effectiveTimeout is min(globalDefault, override) per §4.3.
func (o *Orchestrator) effectiveTimeout(override time.Duration) time.Duration {
	if override > 0 && override < o.cfg.DefaultToolTimeout {
		return override
	}
	return o.cfg.DefaultToolTimeout
}

// CallTool is the sole entry point for executing one ToolCall.
func (o *Orchestrator) CallTool(ctx context.Context, call upstream.ToolCall) upstream.ToolResult {
	reg, ok := o.lookup(call.Kind)
	if !ok {
		return upstream.NewError(upstream.NotConfigured, call.Kind, call.ToolName, "upstream not configured or disabled")
	}

	if err := o.bulkhead.Acquire(ctx); err != nil {
		return upstream.NewError(upstream.Cancelled, call.Kind, call.ToolName, err.Error())
	}
	defer o.bulkhead.Release()

	// The effective deadline is absolute for the whole call, retries
	// included (§4.3): a single resilience.Timeout wraps the entire
	// breaker+retry chain rather than each attempt individually.
	timeout := o.effectiveTimeout(call.TimeoutOverride)
	timeoutGuard := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: timeout})

	o.stats.recordCall(call.Kind)

	meta := observe.CallMeta{Namespace: call.Kind.String(), Name: call.ToolName, CorrelationID: call.CorrelationID}
	start := time.Now()

	exec := o.middleware.Wrap(func(ctx context.Context, tool observe.CallMeta, input any) (any, error) {
		return o.executeWithRetry(ctx, reg, call)
	})

	var payload any
	err := timeoutGuard.Execute(ctx, func(callCtx context.Context) error {
		p, err := exec(callCtx, meta, call.Params)
		payload = p
		return err
	})
	latency := time.Since(start)

	if err == nil {
		return upstream.ToolResult{Payload: payload, OriginatingUpstream: call.Kind, ToolName: call.ToolName, Latency: latency}
	}
	return toolResultFromErr(call, err, latency)
}

// executeWithRetry wraps the adapter invocation with the breaker and the
// registration's resilience.Retry policy (§4.3): Transport/TransientServer
// errors retry up to maxRetries with delay baseDelay·2^(attempt-1); all
// other kinds, and a tripped breaker, return immediately.
func (o *Orchestrator) executeWithRetry(ctx context.Context, reg *registration, call upstream.ToolCall) (any, error) {
	var payload any
	err := reg.retry.Execute(ctx, func(ctx context.Context) error {
		return reg.breaker.Execute(ctx, func(ctx context.Context) error {
			p, callErr := reg.adapter.CallTool(ctx, call.ToolName, call.Params)
			if callErr != nil {
				return callErr
			}
			payload = p
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, &upstream.CallError{Kind: upstream.BreakerOpen, Message: "circuit breaker open", OriginatingUpstream: call.Kind, ToolName: call.ToolName}
		}
		return nil, err
	}
	return payload, nil
}

func classifyErr(err error) upstream.ErrorKind {
	var ce *upstream.CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return upstream.Transport
}

func toolResultFromErr(call upstream.ToolCall, err error, latency time.Duration) upstream.ToolResult {
	var ce *upstream.CallError
	switch {
	case errors.As(err, &ce):
		// already classified
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		ce = &upstream.CallError{Kind: upstream.Timeout, Message: err.Error(), OriginatingUpstream: call.Kind, ToolName: call.ToolName}
	case errors.Is(err, context.Canceled), errors.Is(err, resilience.ErrBulkheadFull):
		ce = &upstream.CallError{Kind: upstream.Cancelled, Message: err.Error(), OriginatingUpstream: call.Kind, ToolName: call.ToolName}
	default:
		ce = &upstream.CallError{Kind: upstream.Transport, Message: err.Error(), OriginatingUpstream: call.Kind, ToolName: call.ToolName}
	}
	return upstream.ToolResult{
		Err:                 ce,
		OriginatingUpstream: call.Kind,
		ToolName:            call.ToolName,
		Latency:             latency,
	}
}

// Health reports true when the adapter registered for kind reports healthy
// within the default tool timeout, and false when no adapter is found for
// kind.
func (o *Orchestrator) Health(ctx context.Context, kind upstream.Kind) bool {
	reg, ok := o.lookup(kind)
	if !ok {
		return false
	}
	o.stats.recordHealthCheck()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.DefaultToolTimeout)
	defer cancel()
	return reg.adapter.Health(ctx)
}
