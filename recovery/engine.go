package recovery

import (
	"context"
	"strconv"
	"time"

	"github.com/mediabridge/gatewayd/eventbus"
	"github.com/mediabridge/gatewayd/monitoring"
	"github.com/mediabridge/gatewayd/observe"
	"github.com/mediabridge/gatewayd/orchestrator"
	"github.com/mediabridge/gatewayd/upstream"
)

// Engine is the recovery loop described in spec.md §4.7: it subscribes to
// download.failed, chooses a retry strategy per download, and drives the
// Orchestrator through it.
type Engine struct {
	orch   *orchestrator.Orchestrator
	bus    *eventbus.Bus
	cfg    Config
	logger observe.Logger
	reg    *registry
}

// New constructs an Engine bound to orch and bus. Call Run to subscribe and
// block until ctx is cancelled.
func New(orch *orchestrator.Orchestrator, bus *eventbus.Bus, cfg Config, logger observe.Logger) *Engine {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &Engine{
		orch:   orch,
		bus:    bus,
		cfg:    cfg.withDefaults(),
		logger: logger,
		reg:    newRegistry(),
	}
}

// Attempts returns the retry ledger for one downloadId, attempt order.
func (e *Engine) Attempts(downloadID string) []RetryAttempt {
	return e.reg.forID(downloadID)
}

// Snapshot returns every RetryAttempt recorded so far.
func (e *Engine) Snapshot() []RetryAttempt {
	return e.reg.snapshot()
}

// Run subscribes to download.failed and blocks until ctx is cancelled. Each
// event is handed to its own goroutine, so a second event for a download
// whose retry is still in flight finds the per-download lock held and is
// dropped instead of waiting behind it.
func (e *Engine) Run(ctx context.Context) {
	unsubscribe := e.bus.Subscribe(eventbus.TopicDownloadFailed, func(ev eventbus.Event) {
		go e.handleFailure(ctx, ev)
	})
	defer unsubscribe()

	<-ctx.Done()
}

func (e *Engine) handleFailure(ctx context.Context, ev eventbus.Event) {
	f, ok := ev.Payload.(monitoring.FailedDownload)
	if !ok {
		return
	}

	st := e.reg.get(f.ID)

	// Per-download lock (§4.7 step 3): if a retry for this id is already in
	// flight, drop the event rather than block — the in-flight attempt will
	// publish its own outcome.
	if !st.mu.TryLock() {
		return
	}
	defer st.mu.Unlock()

	attempt := st.attemptNumber + 1
	if attempt > e.cfg.MaxRetryAttempts {
		e.bus.Publish(eventbus.TopicRecoveryExhausted, ev.CorrelationID, map[string]any{
			"downloadId":    f.ID,
			"attemptNumber": attempt,
		})
		return
	}

	strategy := e.chooseStrategy(attempt, f.ClassifiedReason, f.Name, st.qualityDowngrades)

	st.attemptNumber = attempt
	st.attempts = append(st.attempts, RetryAttempt{
		DownloadID:      f.ID,
		Strategy:        strategy,
		AttemptNumber:   attempt,
		ScheduledAtUnix: time.Now().Unix(),
		Outcome:         OutcomePending,
	})

	switch strategy {
	case StrategyImmediate:
		e.retryDownload(ctx, ev.CorrelationID, f, attempt)
	case StrategyBackoff:
		e.backoffThenRetry(ctx, ev.CorrelationID, f, attempt)
	case StrategyQualityFallback:
		st.qualityDowngrades++
		e.searchFallback(ctx, ev.CorrelationID, f, attempt, true)
	case StrategyAlternativeSearch:
		e.searchFallback(ctx, ev.CorrelationID, f, attempt, false)
	}
}

// chooseStrategy implements spec §4.7 step 2, including the classification
// overrides: a DiskSpace-classified failure suppresses Immediate, and a
// Quality-classified failure prefers QualityFallback from attempt 1 (bounded
// by maxQualityDowngrades, per the Open Question decision recorded in
// DESIGN.md).
func (e *Engine) chooseStrategy(attempt int, reason monitoring.FailureReason, name string, qualityDowngrades int) Strategy {
	if reason == monitoring.ReasonQuality && e.cfg.QualityFallbackEnabled && qualityDowngrades < maxQualityDowngrades {
		return StrategyQualityFallback
	}

	switch attempt {
	case 1:
		if e.cfg.ImmediateRetryEnabled && reason != monitoring.ReasonDiskSpace {
			return StrategyImmediate
		}
	case 2:
		if e.cfg.BackoffEnabled {
			return StrategyBackoff
		}
	}

	if e.cfg.QualityFallbackEnabled && qualityDowngrades < maxQualityDowngrades && extractQuality(name) != "" {
		return StrategyQualityFallback
	}
	return StrategyAlternativeSearch
}

// retryDownload executes the Immediate strategy: call retryDownload on the
// Download upstream and emit the started/result events.
func (e *Engine) retryDownload(ctx context.Context, correlationID string, f monitoring.FailedDownload, attempt int) {
	res := e.orch.CallTool(ctx, upstream.ToolCall{
		Kind:          upstream.Download,
		ToolName:      "retryDownload",
		Params:        map[string]any{"id": f.ID},
		CorrelationID: correlationID,
	})

	if !res.Ok() {
		e.reg.setOutcome(f.ID, attempt, OutcomeFailure)
		e.bus.Publish(eventbus.TopicDownloadRetryFailed, correlationID, map[string]any{
			"downloadId": f.ID, "attemptNumber": attempt, "error": res.Err.Error(),
		})
		return
	}

	e.bus.Publish(eventbus.TopicDownloadRetryStarted, correlationID, map[string]any{
		"downloadId": f.ID, "attemptNumber": attempt, "strategy": StrategyImmediate,
	})
	e.awaitResult(ctx, correlationID, f.ID, attempt)
}

// backoffThenRetry executes the Backoff strategy: sleep
// backoffBase·backoffMultiplier^(attempt-2), capped at backoffMax, then
// retry exactly as Immediate does.
func (e *Engine) backoffThenRetry(ctx context.Context, correlationID string, f monitoring.FailedDownload, attempt int) {
	delay := e.cfg.BackoffBase
	for i := 0; i < attempt-2; i++ {
		delay = time.Duration(float64(delay) * e.cfg.BackoffMultiplier)
	}
	if delay > e.cfg.BackoffMax {
		delay = e.cfg.BackoffMax
	}

	select {
	case <-ctx.Done():
		e.reg.setOutcome(f.ID, attempt, OutcomeFailure)
		return
	case <-time.After(delay):
	}

	res := e.orch.CallTool(ctx, upstream.ToolCall{
		Kind:          upstream.Download,
		ToolName:      "retryDownload",
		Params:        map[string]any{"id": f.ID},
		CorrelationID: correlationID,
	})
	if !res.Ok() {
		e.reg.setOutcome(f.ID, attempt, OutcomeFailure)
		e.bus.Publish(eventbus.TopicDownloadRetryFailed, correlationID, map[string]any{
			"downloadId": f.ID, "attemptNumber": attempt, "error": res.Err.Error(),
		})
		return
	}

	e.bus.Publish(eventbus.TopicDownloadRetryStarted, correlationID, map[string]any{
		"downloadId": f.ID, "attemptNumber": attempt, "strategy": StrategyBackoff,
	})
	e.awaitResult(ctx, correlationID, f.ID, attempt)
}

// searchFallback executes QualityFallback (lowerQuality=true) or
// AlternativeSearch (lowerQuality=false): locate the underlying item in the
// appropriate manager upstream and issue a new search, optionally at a
// lowered quality tier.
func (e *Engine) searchFallback(ctx context.Context, correlationID string, f monitoring.FailedDownload, attempt int, lowerQuality bool) {
	kind := upstream.MovieManager
	if isTVRelease(f.Name) {
		kind = upstream.TvManager
	}

	quality := ""
	if lowerQuality {
		current := extractQuality(f.Name)
		lower, ok := nextLowerQuality(current)
		if !ok {
			// No lower tier available; fall back to a plain alternative search.
			e.searchFallback(ctx, correlationID, f, attempt, false)
			return
		}
		quality = lower
	}

	title := extractTitle(f.Name)
	searchRes := e.orch.CallTool(ctx, upstream.ToolCall{
		Kind:          kind,
		ToolName:      "search",
		Params:        map[string]any{"term": title},
		CorrelationID: correlationID,
	})

	id, found := firstItemID(searchRes)
	if !searchRes.Ok() || !found {
		e.reg.setOutcome(f.ID, attempt, OutcomeFailure)
		e.bus.Publish(eventbus.TopicRecoveryUnresolved, correlationID, map[string]any{
			"downloadId": f.ID, "attemptNumber": attempt, "title": title,
		})
		return
	}

	params := map[string]any{"id": id}
	if quality != "" {
		params["quality"] = quality
	}
	res := e.orch.CallTool(ctx, upstream.ToolCall{
		Kind:          kind,
		ToolName:      "searchItem",
		Params:        params,
		CorrelationID: correlationID,
	})

	strategy := StrategyAlternativeSearch
	if lowerQuality {
		strategy = StrategyQualityFallback
	}

	if !res.Ok() {
		e.reg.setOutcome(f.ID, attempt, OutcomeFailure)
		e.bus.Publish(eventbus.TopicDownloadRetryFailed, correlationID, map[string]any{
			"downloadId": f.ID, "attemptNumber": attempt, "strategy": strategy, "error": res.Err.Error(),
		})
		return
	}

	e.bus.Publish(eventbus.TopicDownloadRetryStarted, correlationID, map[string]any{
		"downloadId": f.ID, "attemptNumber": attempt, "strategy": strategy, "quality": quality,
	})
	e.awaitResult(ctx, correlationID, f.ID, attempt)
}

// awaitResult watches for a fresh download.failed for the same id before
// resultDeadline elapses; if one arrives, the retry is judged a failure,
// otherwise a success (spec §4.7 step 4: "schedule a deferred
// recovery.retry.result after the next poll observes the outcome, or after
// resultDeadline").
func (e *Engine) awaitResult(ctx context.Context, correlationID, downloadID string, attempt int) {
	resultCh := make(chan struct{}, 1)
	unsubscribe := e.bus.Subscribe(eventbus.TopicDownloadFailed, func(ev eventbus.Event) {
		if fd, ok := ev.Payload.(monitoring.FailedDownload); ok && fd.ID == downloadID {
			select {
			case resultCh <- struct{}{}:
			default:
			}
		}
	})

	go func() {
		defer unsubscribe()
		select {
		case <-resultCh:
			e.reg.setOutcome(downloadID, attempt, OutcomeFailure)
			e.bus.Publish(eventbus.TopicDownloadRetryFailed, correlationID, map[string]any{
				"downloadId": downloadID, "attemptNumber": attempt,
			})
		case <-time.After(e.cfg.ResultDeadline):
			e.reg.setOutcome(downloadID, attempt, OutcomeSuccess)
			e.bus.Publish(eventbus.TopicDownloadRetrySucceeded, correlationID, map[string]any{
				"downloadId": downloadID, "attemptNumber": attempt,
			})
		case <-ctx.Done():
		}
	}()
}

// firstItemID extracts an "id" field from the first element of a search
// result, tolerating whatever shape the manager upstream returns (mirrors
// monitoring.normalize's defensive field extraction).
func firstItemID(res upstream.ToolResult) (string, bool) {
	if !res.Ok() {
		return "", false
	}
	items, ok := res.Payload.([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	m, ok := items[0].(map[string]any)
	if !ok {
		return "", false
	}
	switch v := m["id"].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}
