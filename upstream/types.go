package upstream

import "time"

// Kind is the closed enumeration of remote services the gateway mediates.
type Kind int

const (
	Download Kind = iota
	TvManager
	MovieManager
	MediaLibrary
)

// String renders the kind as the lowercase identifier used in config files,
// log fields, and event payloads.
func (k Kind) String() string {
	switch k {
	case Download:
		return "download"
	case TvManager:
		return "tvmanager"
	case MovieManager:
		return "moviemanager"
	case MediaLibrary:
		return "medialibrary"
	default:
		return "unknown"
	}
}

// ParseKind maps a config/event string back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "download":
		return Download, true
	case "tvmanager":
		return TvManager, true
	case "moviemanager":
		return MovieManager, true
	case "medialibrary":
		return MediaLibrary, true
	default:
		return Kind(-1), false
	}
}

// CredentialRef names how an UpstreamConfig's credential is resolved. It is
// resolved through secret.Resolver at Adapter construction time: a literal
// value with "${VAR}" environment expansion, or a "secretref:<provider>:<ref>"
// reference.
type CredentialRef string

// Config describes one registered upstream. Immutable after the owning
// Orchestrator is constructed.
type Config struct {
	Kind       Kind
	BaseURL    string
	Credential CredentialRef
	Timeout    time.Duration
	MaxRetries int
	Enabled    bool
}

// ToolCall names a single invocation to route through the orchestrator.
type ToolCall struct {
	Kind            Kind
	ToolName        string
	Params          map[string]any
	TimeoutOverride time.Duration // zero means "use the effective default"
	CorrelationID   string        // empty means "generate one"
	Critical        bool          // used by cancelOnCritical fan-out
}

// ToolResult is the tagged-union outcome of a ToolCall. Exactly one of
// Payload or Err is meaningful, discriminated by Err == nil.
type ToolResult struct {
	Payload            any
	Err                *CallError
	OriginatingUpstream Kind
	ToolName           string
	Latency            time.Duration
}

// Ok reports whether the call succeeded.
func (r ToolResult) Ok() bool { return r.Err == nil }
