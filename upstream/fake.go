package upstream

import (
	"context"
	"sync"
)

// FakeAdapter is the only test double for Adapter: per the re-architecture
// guidance, production adapters never gain stub methods at runtime, so
// tests exercise this in-memory implementation instead of monkey-patching a
// real one.
type FakeAdapter struct {
	kind Kind

	mu          sync.Mutex
	connected   bool
	ConnectErr  error
	HealthFunc  func(ctx context.Context) bool
	ListFunc    func(ctx context.Context) ([]string, error)
	CallFunc    func(ctx context.Context, toolName string, params map[string]any) (any, error)
	ConnectCalls int
	CallCount    map[string]int
}

// NewFakeAdapter builds a FakeAdapter for the given kind with a CallFunc
// that always succeeds with a nil payload unless overridden.
func NewFakeAdapter(kind Kind) *FakeAdapter {
	return &FakeAdapter{
		kind:      kind,
		CallCount: make(map[string]int),
		CallFunc: func(ctx context.Context, toolName string, params map[string]any) (any, error) {
			return map[string]any{}, nil
		},
		HealthFunc: func(ctx context.Context) bool { return true },
		ListFunc:   func(ctx context.Context) ([]string, error) { return nil, nil },
	}
}

func (f *FakeAdapter) Kind() Kind { return f.kind }

func (f *FakeAdapter) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	if f.connected {
		return nil
	}
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *FakeAdapter) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FakeAdapter) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeAdapter) Health(ctx context.Context) bool {
	return f.HealthFunc(ctx)
}

func (f *FakeAdapter) ListTools(ctx context.Context) ([]string, error) {
	return f.ListFunc(ctx)
}

func (f *FakeAdapter) CallTool(ctx context.Context, toolName string, params map[string]any) (any, error) {
	f.mu.Lock()
	f.CallCount[toolName]++
	f.mu.Unlock()
	return f.CallFunc(ctx, toolName, params)
}
