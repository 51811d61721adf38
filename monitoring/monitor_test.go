package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/mediabridge/gatewayd/eventbus"
	"github.com/mediabridge/gatewayd/orchestrator"
	"github.com/mediabridge/gatewayd/upstream"
)

func newTestMonitor(t *testing.T, bus *eventbus.Bus, cfg Config, queue, history func(ctx context.Context, tool string, params map[string]any) (any, error)) *Monitor {
	t.Helper()
	ocfg := orchestrator.DefaultConfig()
	ocfg.MaxRetries = 0
	orch := orchestrator.New(ocfg, nil, nil, nil)
	fake := upstream.NewFakeAdapter(upstream.Download)
	fake.CallFunc = func(ctx context.Context, toolName string, params map[string]any) (any, error) {
		switch toolName {
		case "getQueue":
			return queue(ctx, toolName, params)
		case "getHistory":
			return history(ctx, toolName, params)
		}
		return map[string]any{}, nil
	}
	if err := orch.RegisterAdapter(fake, true); err != nil {
		t.Fatalf("RegisterAdapter: %v", err)
	}
	return New(orch, bus, cfg, nil)
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestClassifyMapsKnownMessages(t *testing.T) {
	cases := map[string]FailureReason{
		"CRC32 mismatch, par2 repair failed": ReasonQuality,
		"disk is full":                       ReasonDiskSpace,
		"connection timeout to indexer":       ReasonNetwork,
		"401 unauthorized":                   ReasonAuthentication,
		"something bizarre happened":         ReasonUnknown,
	}
	for msg, want := range cases {
		if got := classify(msg); got != want {
			t.Errorf("classify(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestPollPublishesQueueUpdatedAndDownloadFailed(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	cfg := DefaultConfig()

	m := newTestMonitor(t, bus, cfg,
		func(ctx context.Context, tool string, params map[string]any) (any, error) {
			return []any{map[string]any{"id": "1", "name": "show", "status": "Downloading"}}, nil
		},
		func(ctx context.Context, tool string, params map[string]any) (any, error) {
			return []any{map[string]any{"id": "2", "name": "movie", "status": "Failed", "failureMessage": "connection timeout"}}, nil
		},
	)

	var queueEvents, failedEvents []eventbus.Event
	bus.Subscribe(eventbus.TopicQueueUpdated, func(ev eventbus.Event) { queueEvents = append(queueEvents, ev) })
	bus.Subscribe(eventbus.TopicDownloadFailed, func(ev eventbus.Event) { failedEvents = append(failedEvents, ev) })

	m.poll(context.Background())

	waitFor(t, func() bool { return len(queueEvents) == 1 && len(failedEvents) == 1 })

	fd, ok := failedEvents[0].Payload.(FailedDownload)
	if !ok {
		t.Fatalf("expected FailedDownload payload, got %T", failedEvents[0].Payload)
	}
	if fd.ClassifiedReason != ReasonNetwork {
		t.Fatalf("expected Network classification, got %v", fd.ClassifiedReason)
	}
}

func TestPollThrottlesRepeatedFailureWithinWindow(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	cfg := DefaultConfig()
	cfg.AlertThrottleWindow = time.Hour

	m := newTestMonitor(t, bus, cfg,
		func(ctx context.Context, tool string, params map[string]any) (any, error) { return []any{}, nil },
		func(ctx context.Context, tool string, params map[string]any) (any, error) {
			return []any{map[string]any{"id": "dup", "status": "Failed", "failureMessage": "network reset"}}, nil
		},
	)

	var count int
	bus.Subscribe(eventbus.TopicDownloadFailed, func(ev eventbus.Event) { count++ })

	m.poll(context.Background())
	m.poll(context.Background())

	waitFor(t, func() bool { return count >= 1 })
	time.Sleep(20 * time.Millisecond)
	if count != 1 {
		t.Fatalf("expected the repeated failure to be throttled, got %d events", count)
	}
}

func TestPollDetectsFailurePatternAtThreshold(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	cfg := DefaultConfig()
	cfg.PatternThreshold = 3

	ids := []string{"a", "b", "c"}
	call := 0
	m := newTestMonitor(t, bus, cfg,
		func(ctx context.Context, tool string, params map[string]any) (any, error) { return []any{}, nil },
		func(ctx context.Context, tool string, params map[string]any) (any, error) {
			id := ids[call]
			call++
			return []any{map[string]any{"id": id, "status": "Failed", "failureMessage": "disk space full"}}, nil
		},
	)

	var patterns []FailurePattern
	bus.Subscribe(eventbus.TopicFailurePatternDetected, func(ev eventbus.Event) {
		patterns = append(patterns, ev.Payload.(FailurePattern))
	})

	for i := 0; i < 3; i++ {
		m.poll(context.Background())
	}

	waitFor(t, func() bool { return len(patterns) == 1 })
	if patterns[0].Count != 3 || patterns[0].Reason != ReasonDiskSpace {
		t.Fatalf("unexpected pattern: %+v", patterns[0])
	}
}

func TestPollEmitsDegradedThenRecovered(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	cfg := DefaultConfig()
	cfg.ConsecutivePollFailureThreshold = 2

	failing := true
	m := newTestMonitor(t, bus, cfg,
		func(ctx context.Context, tool string, params map[string]any) (any, error) {
			if failing {
				return nil, &upstream.CallError{Kind: upstream.Transport, Message: "down"}
			}
			return []any{}, nil
		},
		func(ctx context.Context, tool string, params map[string]any) (any, error) {
			if failing {
				return nil, &upstream.CallError{Kind: upstream.Transport, Message: "down"}
			}
			return []any{}, nil
		},
	)

	var degraded, recovered int
	bus.Subscribe(eventbus.TopicMonitoringDegraded, func(ev eventbus.Event) { degraded++ })
	bus.Subscribe(eventbus.TopicMonitoringRecovered, func(ev eventbus.Event) { recovered++ })

	m.poll(context.Background())
	m.poll(context.Background())
	waitFor(t, func() bool { return degraded == 1 })

	failing = false
	m.poll(context.Background())
	waitFor(t, func() bool { return recovered == 1 })
}
