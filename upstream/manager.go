package upstream

import (
	"context"
	"net/url"
	"sync"

	"github.com/mediabridge/gatewayd/secret"
)

// managerTools is the tool surface shared by TvManager and MovieManager
// (§6): both are Sonarr/Radarr-style *arr managers with an identical API
// shape, differing only in item vocabulary (episodes vs movies).
var managerTools = []string{
	"getItems", "getItemById", "search", "addItem", "deleteItem", "searchItem",
	"refreshItem", "getCalendar", "getQueue", "getWantedMissing",
	"getQualityProfiles", "getRootFolders", "getIndexers", "getDownloadClients",
	"getHealth", "getStatus",
}

// managerAdapter implements the shared *arr-style manager surface. Credential
// is sent as a header API key, matching Sonarr/Radarr convention.
type managerAdapter struct {
	kind Kind
	t    *transport

	mu        sync.RWMutex
	connected bool
}

func newManagerAdapter(kind Kind, cfg Config, resolver *secret.Resolver) (*managerAdapter, error) {
	t, err := newTransport(kind, cfg, resolver, CredentialHeader, "X-Api-Key")
	if err != nil {
		return nil, err
	}
	return &managerAdapter{kind: kind, t: t}, nil
}

func (a *managerAdapter) Kind() Kind { return a.kind }

func (a *managerAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	if _, err := a.t.get(ctx, "/api/v3/system/status", nil); err != nil {
		return err
	}
	a.connected = true
	return nil
}

func (a *managerAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *managerAdapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *managerAdapter) Health(ctx context.Context) bool {
	_, err := a.t.get(ctx, "/api/v3/health", nil)
	return err == nil
}

func (a *managerAdapter) ListTools(ctx context.Context) ([]string, error) {
	out := make([]string, len(managerTools))
	copy(out, managerTools)
	return out, nil
}

func (a *managerAdapter) CallTool(ctx context.Context, toolName string, params map[string]any) (any, error) {
	switch toolName {
	case "getItems":
		return a.getJSON(ctx, "/api/v3/series", nil)
	case "getItemById":
		id, _ := params["id"].(string)
		return a.getJSON(ctx, "/api/v3/series/"+id, nil)
	case "search":
		term, _ := params["term"].(string)
		return a.getJSON(ctx, "/api/v3/series/lookup", url.Values{"term": {term}})
	case "addItem":
		return a.postJSON(ctx, "/api/v3/series", params["payload"])
	case "deleteItem":
		id, _ := params["id"].(string)
		q := url.Values{}
		if del, _ := params["deleteFiles"].(bool); del {
			q.Set("deleteFiles", "true")
		}
		_, err := a.t.mutate(ctx, "DELETE", "/api/v3/series/"+id, q, nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	case "searchItem":
		id, _ := params["id"].(string)
		return a.postJSON(ctx, "/api/v3/command", map[string]any{"name": "SeriesSearch", "seriesId": id})
	case "refreshItem":
		id, _ := params["id"].(string)
		return a.postJSON(ctx, "/api/v3/command", map[string]any{"name": "RefreshSeries", "seriesId": id})
	case "getCalendar":
		q := url.Values{}
		if start, _ := params["start"].(string); start != "" {
			q.Set("start", start)
		}
		if end, _ := params["end"].(string); end != "" {
			q.Set("end", end)
		}
		return a.getJSON(ctx, "/api/v3/calendar", q)
	case "getQueue":
		return a.getJSON(ctx, "/api/v3/queue", nil)
	case "getWantedMissing":
		return a.getJSON(ctx, "/api/v3/wanted/missing", nil)
	case "getQualityProfiles":
		return a.getJSON(ctx, "/api/v3/qualityprofile", nil)
	case "getRootFolders":
		return a.getJSON(ctx, "/api/v3/rootfolder", nil)
	case "getIndexers":
		return a.getJSON(ctx, "/api/v3/indexer", nil)
	case "getDownloadClients":
		return a.getJSON(ctx, "/api/v3/downloadclient", nil)
	case "getHealth":
		return a.getJSON(ctx, "/api/v3/health", nil)
	case "getStatus":
		return a.getJSON(ctx, "/api/v3/system/status", nil)
	default:
		return nil, &CallError{Kind: NotFound, Message: "unknown tool " + toolName, OriginatingUpstream: a.kind, ToolName: toolName}
	}
}

func (a *managerAdapter) getJSON(ctx context.Context, path string, q url.Values) (any, error) {
	data, err := a.t.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(data)
}

func (a *managerAdapter) postJSON(ctx context.Context, path string, payload any) (any, error) {
	data, err := a.t.mutate(ctx, "POST", path, nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(data)
}

// TvManagerAdapter wraps a Sonarr-style TV manager upstream.
type TvManagerAdapter struct{ *managerAdapter }

func NewTvManagerAdapter(cfg Config, resolver *secret.Resolver) (*TvManagerAdapter, error) {
	m, err := newManagerAdapter(TvManager, cfg, resolver)
	if err != nil {
		return nil, err
	}
	return &TvManagerAdapter{m}, nil
}

// MovieManagerAdapter wraps a Radarr-style movie manager upstream.
type MovieManagerAdapter struct{ *managerAdapter }

func NewMovieManagerAdapter(cfg Config, resolver *secret.Resolver) (*MovieManagerAdapter, error) {
	m, err := newManagerAdapter(MovieManager, cfg, resolver)
	if err != nil {
		return nil, err
	}
	return &MovieManagerAdapter{m}, nil
}
