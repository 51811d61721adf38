package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mediabridge/gatewayd/upstream"
)

// CallToolsParallel executes every call concurrently, bounded by maxParallel,
// preserving input order in the returned slice. When cancelOnCritical is
// configured and a call marked Critical fails, outstanding calls are
// cancelled and the calls that hadn't started yet are not attempted; their
// slot is left as the zero ToolResult unless returnPartial is true, in which
// case it is filled with a Cancelled result.
func (o *Orchestrator) CallToolsParallel(ctx context.Context, calls []upstream.ToolCall, returnPartial bool) []upstream.ToolResult {
	results := make([]upstream.ToolResult, len(calls))

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if o.cfg.ParallelTimeout > 0 {
		var timeoutCancel context.CancelFunc
		batchCtx, timeoutCancel = context.WithTimeout(batchCtx, o.cfg.ParallelTimeout)
		defer timeoutCancel()
	}

	sem := semaphore.NewWeighted(int64(o.cfg.MaxParallel))
	var wg sync.WaitGroup
	var cancelled bool
	var mu sync.Mutex

	for i, call := range calls {
		if err := sem.Acquire(batchCtx, 1); err != nil {
			mu.Lock()
			skip := cancelled
			mu.Unlock()
			if returnPartial || !skip {
				results[i] = upstream.NewError(upstream.Cancelled, call.Kind, call.ToolName, "parallel batch cancelled before this call started")
			}
			continue
		}

		wg.Add(1)
		go func(i int, call upstream.ToolCall) {
			defer wg.Done()
			defer sem.Release(1)

			res := o.CallTool(batchCtx, call)
			results[i] = res

			if o.cfg.CancelOnCritical && call.Critical && !res.Ok() {
				mu.Lock()
				cancelled = true
				mu.Unlock()
				cancel()
			}
		}(i, call)
	}

	wg.Wait()
	return results
}
