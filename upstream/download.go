package upstream

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/mediabridge/gatewayd/secret"
)

// downloadTool describes one tool this upstream exposes, gated by the
// upstream's reported version (§6: direct-unpack ≥3.x, propagation-delay
// ≥3.x, deobfuscation ≥4.x).
type downloadTool struct {
	name       string
	minVersion int
}

var downloadTools = []downloadTool{
	{"getQueue", 0},
	{"getHistory", 0},
	{"getStatus", 0},
	{"pauseQueue", 0},
	{"resumeQueue", 0},
	{"pauseDownload", 0},
	{"resumeDownload", 0},
	{"retryDownload", 0},
	{"deleteDownload", 0},
	{"getConfig", 0},
	{"setConfig", 0},
	{"setDirectUnpack", 3},
	{"setPropagationDelay", 3},
	{"setDeobfuscation", 4},
}

// DownloadAdapter wraps a Usenet download-daemon style upstream.
type DownloadAdapter struct {
	t *transport

	mu        sync.RWMutex
	connected bool
	version   int // reported major version, 0 until first connect
}

// NewDownloadAdapter constructs an adapter for the Download upstream. The
// credential is sent as an API-key query parameter, matching the convention
// used by SABnzbd/NZBGet-style download daemons.
func NewDownloadAdapter(cfg Config, resolver *secret.Resolver) (*DownloadAdapter, error) {
	t, err := newTransport(Download, cfg, resolver, CredentialQueryParam, "apikey")
	if err != nil {
		return nil, err
	}
	return &DownloadAdapter{t: t}, nil
}

func (a *DownloadAdapter) Kind() Kind { return Download }

func (a *DownloadAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	var status struct {
		Version string `json:"version"`
	}
	data, err := a.t.get(ctx, "/api", url.Values{"mode": {"version"}})
	if err != nil {
		return err
	}
	if err := decodeJSON(data, &status); err != nil {
		return err
	}
	a.version = parseMajorVersion(status.Version)
	a.connected = true
	return nil
}

func (a *DownloadAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *DownloadAdapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *DownloadAdapter) Health(ctx context.Context) bool {
	_, err := a.t.get(ctx, "/api", url.Values{"mode": {"version"}})
	return err == nil
}

func (a *DownloadAdapter) ListTools(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	version := a.version
	a.mu.RUnlock()

	names := make([]string, 0, len(downloadTools))
	for _, t := range downloadTools {
		if t.minVersion <= version {
			names = append(names, t.name)
		}
	}
	return names, nil
}

func (a *DownloadAdapter) CallTool(ctx context.Context, toolName string, params map[string]any) (any, error) {
	switch toolName {
	case "getQueue":
		return a.call(ctx, "queue")
	case "getHistory":
		q := url.Values{"mode": {"history"}}
		if failedOnly, _ := params["failedOnly"].(bool); failedOnly {
			q.Set("failed_only", "1")
		}
		if cat, _ := params["category"].(string); cat != "" {
			q.Set("category", cat)
		}
		return a.getJSON(ctx, q)
	case "getStatus":
		return a.call(ctx, "status")
	case "pauseQueue":
		return a.getJSON(ctx, url.Values{"mode": {"pause"}})
	case "resumeQueue":
		return a.getJSON(ctx, url.Values{"mode": {"resume"}})
	case "pauseDownload":
		return a.withID(ctx, "queue", "pause", params)
	case "resumeDownload":
		return a.withID(ctx, "queue", "resume", params)
	case "retryDownload":
		return a.withID(ctx, "queue", "retry", params)
	case "deleteDownload":
		id, _ := params["id"].(string)
		q := url.Values{"mode": {"queue"}, "name": {"delete"}, "value": {id}}
		if del, _ := params["deleteFiles"].(bool); del {
			q.Set("del_files", "1")
		}
		return a.getJSON(ctx, q)
	case "getConfig":
		q := url.Values{"mode": {"get_config"}}
		if section, _ := params["section"].(string); section != "" {
			q.Set("section", section)
		}
		return a.getJSON(ctx, q)
	case "setConfig":
		section, _ := params["section"].(string)
		key, _ := params["key"].(string)
		value, _ := params["value"].(string)
		data, err := a.t.mutate(ctx, "POST", "/api", url.Values{
			"mode": {"set_config"}, "section": {section}, "keyword": {key}, "value": {value},
		}, nil)
		if err != nil {
			return nil, err
		}
		return decodeGeneric(data)
	case "setDirectUnpack":
		return a.setVersionGated(ctx, 3, "direct_unpack", params)
	case "setPropagationDelay":
		return a.setVersionGated(ctx, 3, "propagation_delay", params)
	case "setDeobfuscation":
		return a.setVersionGated(ctx, 4, "deobfuscate", params)
	default:
		return nil, &CallError{Kind: NotFound, Message: "unknown tool " + toolName, OriginatingUpstream: Download, ToolName: toolName}
	}
}

func (a *DownloadAdapter) setVersionGated(ctx context.Context, minVersion int, key string, params map[string]any) (any, error) {
	a.mu.RLock()
	version := a.version
	a.mu.RUnlock()
	if version < minVersion {
		return nil, &CallError{Kind: NotFound, Message: "feature requires upstream version >= " + strconv.Itoa(minVersion)}
	}
	value, _ := params["value"].(string)
	data, err := a.t.mutate(ctx, "POST", "/api", url.Values{"mode": {"set_config"}, "keyword": {key}, "value": {value}}, nil)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(data)
}

func (a *DownloadAdapter) withID(ctx context.Context, mode, name string, params map[string]any) (any, error) {
	id, _ := params["id"].(string)
	data, err := a.t.mutate(ctx, "POST", "/api", url.Values{"mode": {mode}, "name": {name}, "value": {id}}, nil)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(data)
}

func (a *DownloadAdapter) call(ctx context.Context, mode string) (any, error) {
	return a.getJSON(ctx, url.Values{"mode": {mode}})
}

func (a *DownloadAdapter) getJSON(ctx context.Context, q url.Values) (any, error) {
	data, err := a.t.get(ctx, "/api", q)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(data)
}

func decodeGeneric(data []byte) (any, error) {
	var v any
	if err := decodeJSON(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func parseMajorVersion(v string) int {
	for i, c := range v {
		if c == '.' {
			n, err := strconv.Atoi(v[:i])
			if err != nil {
				return 0
			}
			return n
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
