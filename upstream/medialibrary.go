package upstream

import (
	"context"
	"encoding/xml"
	"net/url"
	"sync"

	"github.com/mediabridge/gatewayd/secret"
)

var mediaLibraryTools = []string{
	"getLibraries", "getLibraryItems", "getRecentlyAdded", "getOnDeck",
	"refreshLibrary", "search", "getSessions", "getHistory", "getStatus",
}

// MediaLibraryAdapter wraps a Plex/Jellyfin-style media server upstream.
// Unlike the download daemon and managers, MediaLibrary responses here are
// XML (matching Plex's native wire format); the adapter decodes XML and
// re-exposes a plain map so the rest of the gateway never branches on
// per-upstream wire format.
type MediaLibraryAdapter struct {
	t *transport

	mu        sync.RWMutex
	connected bool
}

func NewMediaLibraryAdapter(cfg Config, resolver *secret.Resolver) (*MediaLibraryAdapter, error) {
	t, err := newTransport(MediaLibrary, cfg, resolver, CredentialQueryParam, "X-Plex-Token")
	if err != nil {
		return nil, err
	}
	return &MediaLibraryAdapter{t: t}, nil
}

func (a *MediaLibraryAdapter) Kind() Kind { return MediaLibrary }

func (a *MediaLibraryAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	if _, err := a.t.get(ctx, "/identity", nil); err != nil {
		return err
	}
	a.connected = true
	return nil
}

func (a *MediaLibraryAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *MediaLibraryAdapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *MediaLibraryAdapter) Health(ctx context.Context) bool {
	_, err := a.t.get(ctx, "/identity", nil)
	return err == nil
}

func (a *MediaLibraryAdapter) ListTools(ctx context.Context) ([]string, error) {
	out := make([]string, len(mediaLibraryTools))
	copy(out, mediaLibraryTools)
	return out, nil
}

func (a *MediaLibraryAdapter) CallTool(ctx context.Context, toolName string, params map[string]any) (any, error) {
	switch toolName {
	case "getLibraries":
		return a.getXML(ctx, "/library/sections", nil)
	case "getLibraryItems":
		id, _ := params["libraryId"].(string)
		return a.getXML(ctx, "/library/sections/"+id+"/all", nil)
	case "getRecentlyAdded":
		return a.getXML(ctx, "/library/recentlyAdded", nil)
	case "getOnDeck":
		return a.getXML(ctx, "/library/onDeck", nil)
	case "refreshLibrary":
		id, _ := params["libraryId"].(string)
		_, err := a.t.mutate(ctx, "GET", "/library/sections/"+id+"/refresh", nil, nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	case "search":
		q, _ := params["query"].(string)
		return a.getXML(ctx, "/search", url.Values{"query": {q}})
	case "getSessions":
		return a.getXML(ctx, "/status/sessions", nil)
	case "getHistory":
		return a.getXML(ctx, "/status/sessions/history/all", nil)
	case "getStatus":
		return a.getXML(ctx, "/identity", nil)
	default:
		return nil, &CallError{Kind: NotFound, Message: "unknown tool " + toolName, OriginatingUpstream: MediaLibrary, ToolName: toolName}
	}
}

// mediaContainer is the common Plex XML envelope; Directory/Video entries
// are decoded as opaque attribute maps so this adapter stays format-only,
// never content-interpreting (the gateway has no media content handling
// beyond opaque identifiers).
type mediaContainer struct {
	Size       int            `xml:"size,attr"`
	Directory  []mediaElement `xml:"Directory"`
	Video      []mediaElement `xml:"Video"`
	Session    []mediaElement `xml:"Session"`
}

type mediaElement struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

func (a *MediaLibraryAdapter) getXML(ctx context.Context, path string, q url.Values) (any, error) {
	data, err := a.t.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[0] != '<' {
		// Some endpoints (refresh, etc.) return an empty body on success.
		return map[string]any{}, nil
	}
	var container mediaContainer
	if err := decodeXML(data, &container); err != nil {
		return nil, err
	}
	return flattenContainer(container), nil
}

func flattenContainer(c mediaContainer) map[string]any {
	items := make([]map[string]string, 0, len(c.Directory)+len(c.Video)+len(c.Session))
	for _, group := range [][]mediaElement{c.Directory, c.Video, c.Session} {
		for _, el := range group {
			m := make(map[string]string, len(el.Attrs))
			for _, a := range el.Attrs {
				m[a.Name.Local] = a.Value
			}
			items = append(items, m)
		}
	}
	return map[string]any{"size": c.Size, "items": items}
}
