package upstream

import "context"

// Adapter is the uniform capability surface the orchestrator drives. Every
// concrete upstream implements this; the orchestrator never dials directly.
//
// Contract:
//   - Connect is idempotent: calling it twice on a connected adapter is a
//     no-op.
//   - Disconnect is safe to call on a not-connected adapter.
//   - Health and CallTool must honor the context deadline and return
//     without leaking resources when it elapses.
type Adapter interface {
	Kind() Kind

	// Connect performs credential validation by issuing one health probe.
	Connect(ctx context.Context) error

	// Disconnect releases all resources held by the adapter.
	Disconnect(ctx context.Context) error

	// Connected reports whether Connect has succeeded and Disconnect has
	// not since been called.
	Connected() bool

	// Health returns true when the upstream is reachable and authenticated.
	Health(ctx context.Context) bool

	// ListTools returns the tool names this upstream currently exposes.
	// May depend on the upstream's reported version.
	ListTools(ctx context.Context) ([]string, error)

	// CallTool executes one tool invocation, honoring ctx's deadline.
	CallTool(ctx context.Context, toolName string, params map[string]any) (any, error)
}
