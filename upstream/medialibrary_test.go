package upstream

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMediaLibraryAdapterGetLibrariesFlattensXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<MediaContainer size="2">
			<Directory key="1" title="Movies"></Directory>
			<Directory key="2" title="TV Shows"></Directory>
		</MediaContainer>`))
	}))
	defer server.Close()

	a, err := NewMediaLibraryAdapter(Config{BaseURL: server.URL, MaxRetries: 1}, testResolver(t))
	if err != nil {
		t.Fatalf("NewMediaLibraryAdapter: %v", err)
	}

	result, err := a.CallTool(t.Context(), "getLibraries", nil)
	if err != nil {
		t.Fatalf("CallTool getLibraries: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected a flattened map, got %T", result)
	}
	if m["size"] != 2 {
		t.Fatalf("expected size=2, got %v", m["size"])
	}
	items, ok := m["items"].([]map[string]string)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 flattened items, got %+v", m["items"])
	}
	if items[0]["title"] != "Movies" || items[1]["title"] != "TV Shows" {
		t.Fatalf("expected title attributes preserved, got %+v", items)
	}
}

func TestMediaLibraryAdapterRefreshLibraryHandlesEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, err := NewMediaLibraryAdapter(Config{BaseURL: server.URL, MaxRetries: 1}, testResolver(t))
	if err != nil {
		t.Fatalf("NewMediaLibraryAdapter: %v", err)
	}

	result, err := a.CallTool(t.Context(), "refreshLibrary", map[string]any{"libraryId": "1"})
	if err != nil {
		t.Fatalf("CallTool refreshLibrary: %v", err)
	}
	if _, ok := result.(map[string]any); !ok {
		t.Fatalf("expected an empty map result, got %T", result)
	}
}

func TestMediaLibraryAdapterUnknownToolIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<MediaContainer size="0"></MediaContainer>`))
	}))
	defer server.Close()

	a, err := NewMediaLibraryAdapter(Config{BaseURL: server.URL, MaxRetries: 1}, testResolver(t))
	if err != nil {
		t.Fatalf("NewMediaLibraryAdapter: %v", err)
	}
	_, err = a.CallTool(t.Context(), "notReal", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
	ce := asCallError(err)
	if ce == nil || ce.Kind != NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
