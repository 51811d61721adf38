package monitoring

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mediabridge/gatewayd/eventbus"
	"github.com/mediabridge/gatewayd/observe"
	"github.com/mediabridge/gatewayd/orchestrator"
	"github.com/mediabridge/gatewayd/upstream"
)

// Monitor is the periodic poll loop described in spec.md §4.6.
type Monitor struct {
	orch   *orchestrator.Orchestrator
	bus    *eventbus.Bus
	cfg    Config
	logger observe.Logger

	inflight atomic.Bool // at most one outstanding poll at a time

	mu              sync.Mutex
	lastSeenFailure map[string]time.Time // id -> detection time, for alertThrottleWindow
	patternWindow   []classifiedFailure
	consecutiveFail int
	degraded        bool
}

type classifiedFailure struct {
	reason FailureReason
	id     string
	at     time.Time
}

// New constructs a Monitor bound to orch and bus.
func New(orch *orchestrator.Orchestrator, bus *eventbus.Bus, cfg Config, logger observe.Logger) *Monitor {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &Monitor{
		orch:            orch,
		bus:             bus,
		cfg:             cfg.withDefaults(),
		logger:          logger,
		lastSeenFailure: make(map[string]time.Time),
	}
}

// Run blocks, polling every PollInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	if !m.inflight.CompareAndSwap(false, true) {
		return // previous poll still running, drop this tick
	}
	defer m.inflight.Store(false)

	results := m.orch.CallToolsParallel(ctx, []upstream.ToolCall{
		{Kind: upstream.Download, ToolName: "getQueue"},
		{Kind: upstream.Download, ToolName: "getHistory"},
	}, true)

	queueRes, historyRes := results[0], results[1]

	if !queueRes.Ok() || !historyRes.Ok() {
		m.recordPollFailure(ctx)
	} else {
		m.recordPollSuccess(ctx)
	}

	if queueRes.Ok() {
		items := normalizeQueue(queueRes.Payload)
		m.bus.Publish(eventbus.TopicQueueUpdated, "", items)
	}

	if historyRes.Ok() && m.cfg.FailureDetectionEnabled {
		m.processFailures(historyRes.Payload)
	}

	m.pollWanted(ctx)
}

func (m *Monitor) recordPollFailure(ctx context.Context) {
	m.mu.Lock()
	m.consecutiveFail++
	shouldEmit := !m.degraded && m.consecutiveFail >= m.cfg.ConsecutivePollFailureThreshold
	if shouldEmit {
		m.degraded = true
	}
	m.mu.Unlock()

	if shouldEmit {
		m.bus.Publish(eventbus.TopicMonitoringDegraded, "", map[string]any{"reason": "consecutive poll failures"})
	}
}

func (m *Monitor) recordPollSuccess(ctx context.Context) {
	m.mu.Lock()
	m.consecutiveFail = 0
	wasDegraded := m.degraded
	m.degraded = false
	m.mu.Unlock()

	if wasDegraded {
		m.bus.Publish(eventbus.TopicMonitoringRecovered, "", nil)
	}
}

func (m *Monitor) processFailures(payload any) {
	failures := normalizeHistory(payload)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range failures {
		if seenAt, ok := m.lastSeenFailure[f.ID]; ok && now.Sub(seenAt) < m.cfg.AlertThrottleWindow {
			continue
		}
		m.lastSeenFailure[f.ID] = now

		reason := classify(f.FailureMessage)
		f.ClassifiedReason = reason
		f.DetectedAtUnix = now.Unix()

		if m.cfg.PatternRecognitionEnabled {
			m.patternWindow = append(m.patternWindow, classifiedFailure{reason: reason, id: f.ID, at: now})
			m.evictOldPatternsLocked(now)
			m.maybeEmitPatternLocked(reason)
		}

		m.bus.Publish(eventbus.TopicDownloadFailed, "", f)
	}
}

func (m *Monitor) evictOldPatternsLocked(now time.Time) {
	cutoff := now.Add(-m.cfg.PatternWindow)
	i := 0
	for ; i < len(m.patternWindow); i++ {
		if m.patternWindow[i].at.After(cutoff) {
			break
		}
	}
	m.patternWindow = m.patternWindow[i:]
}

func (m *Monitor) maybeEmitPatternLocked(reason FailureReason) {
	var ids []string
	var firstSeen time.Time
	count := 0
	for _, cf := range m.patternWindow {
		if cf.reason != reason {
			continue
		}
		count++
		ids = append(ids, cf.id)
		if firstSeen.IsZero() || cf.at.Before(firstSeen) {
			firstSeen = cf.at
		}
	}
	if count < m.cfg.PatternThreshold {
		return
	}
	m.bus.Publish(eventbus.TopicFailurePatternDetected, "", FailurePattern{
		Reason:            reason,
		Count:             count,
		RepresentativeIDs: ids,
		FirstSeenUnix:     firstSeen.Unix(),
	})
}

func (m *Monitor) pollWanted(ctx context.Context) {
	results := m.orch.CallToolsParallel(ctx, []upstream.ToolCall{
		{Kind: upstream.TvManager, ToolName: "getWantedMissing"},
		{Kind: upstream.MovieManager, ToolName: "getWantedMissing"},
	}, true)

	for _, res := range results {
		if res.Ok() {
			m.bus.Publish(eventbus.TopicWantedUpdated, "", map[string]any{
				"upstream": res.OriginatingUpstream.String(),
				"payload":  res.Payload,
			})
		}
	}
}
