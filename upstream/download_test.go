package upstream

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseMajorVersionHandlesDottedAndBareVersions(t *testing.T) {
	cases := map[string]int{
		"4.2.1":  4,
		"3":      3,
		"2.0":    2,
		"garbage": 0,
	}
	for in, want := range cases {
		if got := parseMajorVersion(in); got != want {
			t.Errorf("parseMajorVersion(%q) = %d, want %d", in, got, want)
		}
	}
}

func newConnectedDownloadAdapter(t *testing.T, version string) (*DownloadAdapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"` + version + `"}`))
	}))
	a, err := NewDownloadAdapter(Config{BaseURL: server.URL, MaxRetries: 1}, testResolver(t))
	if err != nil {
		t.Fatalf("NewDownloadAdapter: %v", err)
	}
	if err := a.Connect(t.Context()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, server
}

func TestDownloadAdapterListToolsGatesByVersion(t *testing.T) {
	a, server := newConnectedDownloadAdapter(t, "2.3.0")
	defer server.Close()

	tools, err := a.ListTools(t.Context())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, name := range tools {
		if name == "setDirectUnpack" || name == "setDeobfuscation" {
			t.Fatalf("expected version-gated tool %q to be absent at version 2, got %v", name, tools)
		}
	}
}

func TestDownloadAdapterListToolsIncludesGatedToolsAtSufficientVersion(t *testing.T) {
	a, server := newConnectedDownloadAdapter(t, "4.1.0")
	defer server.Close()

	tools, err := a.ListTools(t.Context())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{"setDirectUnpack": false, "setPropagationDelay": false, "setDeobfuscation": false}
	for _, name := range tools {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("expected gated tool %q to be present at version 4, got %v", name, tools)
		}
	}
}

func TestDownloadAdapterSetVersionGatedRejectsBelowMinVersion(t *testing.T) {
	a, server := newConnectedDownloadAdapter(t, "2.0.0")
	defer server.Close()

	_, err := a.CallTool(t.Context(), "setDirectUnpack", map[string]any{"value": "1"})
	if err == nil {
		t.Fatal("expected an error calling a version-gated tool below its minimum version")
	}
	ce := asCallError(err)
	if ce == nil || ce.Kind != NotFound {
		t.Fatalf("expected a NotFound CallError, got %v", err)
	}
}

func TestDownloadAdapterCallToolUnknownToolReturnsNotFound(t *testing.T) {
	a, server := newConnectedDownloadAdapter(t, "4.0.0")
	defer server.Close()

	_, err := a.CallTool(t.Context(), "doesNotExist", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
	ce := asCallError(err)
	if ce == nil || ce.Kind != NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDownloadAdapterGetQueueDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") == "version" {
			w.Write([]byte(`{"version":"4.0.0"}`))
			return
		}
		w.Write([]byte(`{"slots":[]}`))
	}))
	defer server.Close()

	a, err := NewDownloadAdapter(Config{BaseURL: server.URL, MaxRetries: 1}, testResolver(t))
	if err != nil {
		t.Fatalf("NewDownloadAdapter: %v", err)
	}
	if err := a.Connect(t.Context()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	result, err := a.CallTool(t.Context(), "getQueue", nil)
	if err != nil {
		t.Fatalf("CallTool getQueue: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected a decoded map, got %T", result)
	}
	if _, ok := m["slots"]; !ok {
		t.Fatalf("expected slots key in decoded response, got %+v", m)
	}
}

func TestDownloadAdapterConnectIsIdempotent(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"version":"4.0.0"}`))
	}))
	defer server.Close()

	a, err := NewDownloadAdapter(Config{BaseURL: server.URL, MaxRetries: 1}, testResolver(t))
	if err != nil {
		t.Fatalf("NewDownloadAdapter: %v", err)
	}
	if err := a.Connect(t.Context()); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if err := a.Connect(t.Context()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected Connect to hit the upstream once, got %d calls", calls)
	}
	if !a.Connected() {
		t.Fatal("expected adapter to report connected")
	}
}
