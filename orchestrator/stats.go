package orchestrator

import (
	"sync"
	"sync/atomic"

	"github.com/mediabridge/gatewayd/upstream"
)

// Stats holds monotone counters, never reset during normal operation.
type Stats struct {
	totalCalls       atomic.Int64
	totalHealthChecks atomic.Int64

	mu              sync.Mutex
	perUpstream     map[upstream.Kind]int64
	breakerTransitions map[upstream.Kind]int64
}

func newStats() *Stats {
	return &Stats{
		perUpstream:        make(map[upstream.Kind]int64),
		breakerTransitions: make(map[upstream.Kind]int64),
	}
}

func (s *Stats) recordCall(kind upstream.Kind) {
	s.totalCalls.Add(1)
	s.mu.Lock()
	s.perUpstream[kind]++
	s.mu.Unlock()
}

func (s *Stats) recordHealthCheck() {
	s.totalHealthChecks.Add(1)
}

func (s *Stats) recordBreakerTransition(kind upstream.Kind) {
	s.mu.Lock()
	s.breakerTransitions[kind]++
	s.mu.Unlock()
}

// Snapshot is an immutable view of the stats for health/stats endpoints.
type Snapshot struct {
	TotalCalls         int64
	TotalHealthChecks  int64
	PerUpstreamCalls   map[upstream.Kind]int64
	BreakerTransitions map[upstream.Kind]int64
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	perUpstream := make(map[upstream.Kind]int64, len(s.perUpstream))
	for k, v := range s.perUpstream {
		perUpstream[k] = v
	}
	transitions := make(map[upstream.Kind]int64, len(s.breakerTransitions))
	for k, v := range s.breakerTransitions {
		transitions[k] = v
	}

	return Snapshot{
		TotalCalls:         s.totalCalls.Load(),
		TotalHealthChecks:  s.totalHealthChecks.Load(),
		PerUpstreamCalls:   perUpstream,
		BreakerTransitions: transitions,
	}
}
