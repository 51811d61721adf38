package upstream

import "testing"

func TestErrorKindRetryableOnlyTransportAndTransientServer(t *testing.T) {
	retryable := map[ErrorKind]bool{
		Transport:       true,
		TransientServer: true,
		Timeout:         false,
		PermanentServer: false,
		Authentication:  false,
		NotFound:        false,
		BreakerOpen:     false,
		NotConfigured:   false,
		Validation:      false,
		Cancelled:       false,
	}
	for kind, want := range retryable {
		if got := kind.Retryable(); got != want {
			t.Errorf("%v.Retryable() = %v, want %v", kind, got, want)
		}
	}
}

func TestCallErrorErrorMessageIncludesUpstreamAndTool(t *testing.T) {
	err := &CallError{Kind: Transport, Message: "connection reset", OriginatingUpstream: Download, ToolName: "getQueue"}
	want := "Transport: download.getQueue: connection reset"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestNewErrorBuildsFailedToolResult(t *testing.T) {
	res := NewError(NotFound, TvManager, "searchItem", "no such series")
	if res.Ok() {
		t.Fatal("expected a failed result")
	}
	if res.Err.Kind != NotFound || res.OriginatingUpstream != TvManager || res.ToolName != "searchItem" {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
}

func TestParseKindRoundTripsWithString(t *testing.T) {
	for _, k := range []Kind{Download, TvManager, MovieManager, MediaLibrary} {
		parsed, ok := ParseKind(k.String())
		if !ok || parsed != k {
			t.Fatalf("ParseKind(%q) = %v, %v; want %v, true", k.String(), parsed, ok, k)
		}
	}
	if _, ok := ParseKind("nonsense"); ok {
		t.Fatal("expected ParseKind to reject an unknown kind")
	}
}
