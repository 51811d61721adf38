package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mediabridge/gatewayd/resilience"
	"github.com/mediabridge/gatewayd/secret"
)

// CredentialMode selects how a resolved credential is attached to outgoing
// requests. Managers upstreams here use a header API key; the transport
// helper is shared, only the mode differs per adapter.
type CredentialMode int

const (
	CredentialHeader CredentialMode = iota
	CredentialQueryParam
)

// transport is the shared HTTP plumbing every concrete adapter embeds. It
// injects the resolved credential, classifies responses into ErrorKinds per
// the adapter contract (§4.1), and retries idempotent GETs a bounded number
// of times — mirroring the header-forwarding and copy-headers idiom from the
// proxy helper this module is grounded on, generalized for a client role
// instead of a reverse-proxy role.
type transport struct {
	kind           Kind
	client         *http.Client
	baseURL        string
	credential     string
	credentialMode CredentialMode
	credentialKey  string // header name or query param name
	retry          *resilience.Retry
}

func newTransport(kind Kind, cfg Config, resolver *secret.Resolver, mode CredentialMode, credentialKey string) (*transport, error) {
	cred, err := resolver.ResolveValue(context.Background(), string(cfg.Credential))
	if err != nil {
		return nil, fmt.Errorf("resolving credential for %s: %w", kind, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &transport{
		kind:    kind,
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		credential:     cred,
		credentialMode: mode,
		credentialKey:  credentialKey,
		retry: resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  maxInt(cfg.MaxRetries, 1),
			InitialDelay: 200 * time.Millisecond,
			Strategy:     resilience.BackoffExponential,
			RetryIf: func(err error) bool {
				ce := asCallError(err)
				return ce != nil && ce.Kind.Retryable()
			},
		}),
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// get issues an idempotent GET, retrying via the adapter-local retry policy
// (distinct from the orchestrator's retry policy, which operates one layer
// up and sees only the final outcome of this call).
func (t *transport) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := t.retry.Execute(ctx, func(ctx context.Context) error {
		b, callErr := t.do(ctx, http.MethodGet, path, query, nil)
		if callErr != nil {
			return callErr
		}
		body = b
		return nil
	})
	if err != nil {
		if ce := asCallError(err); ce != nil {
			return nil, ce
		}
		return nil, err
	}
	return body, nil
}

// mutate issues a non-idempotent request. The adapter layer never retries
// these; the orchestrator decides whether to retry the call as a whole.
func (t *transport) mutate(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var buf io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &CallError{Kind: Validation, Message: err.Error(), OriginatingUpstream: t.kind}
		}
		buf = bytes.NewReader(b)
	}
	return t.do(ctx, method, path, query, buf)
}

func (t *transport) do(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	full := t.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, &CallError{Kind: Validation, Message: err.Error(), OriginatingUpstream: t.kind}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	t.injectCredential(req)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CallError{Kind: Timeout, Message: err.Error(), OriginatingUpstream: t.kind}
		}
		return nil, &CallError{Kind: Transport, Message: err.Error(), OriginatingUpstream: t.kind}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Kind: Transport, Message: err.Error(), OriginatingUpstream: t.kind}
	}

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return nil, &CallError{Kind: kind, Message: http.StatusText(resp.StatusCode), OriginatingUpstream: t.kind}
	}

	if len(data) == 0 {
		return []byte("{}"), nil
	}
	return data, nil
}

func (t *transport) injectCredential(req *http.Request) {
	if t.credential == "" {
		return
	}
	switch t.credentialMode {
	case CredentialQueryParam:
		q := req.URL.Query()
		q.Set(t.credentialKey, t.credential)
		req.URL.RawQuery = q.Encode()
	default:
		req.Header.Set(t.credentialKey, t.credential)
	}
}

// classifyStatus maps an HTTP status to an ErrorKind per §4.1. ok is false
// for 2xx (no error).
func classifyStatus(status int) (ErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == 401 || status == 403:
		return Authentication, true
	case status == 404:
		return NotFound, true
	case status == 429 || status == 503:
		return TransientServer, true
	case status >= 500:
		return PermanentServer, true
	default:
		return PermanentServer, true
	}
}

func asCallError(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &CallError{Kind: Validation, Message: "decoding JSON response: " + err.Error()}
	}
	return nil
}

func decodeXML(data []byte, v any) error {
	if err := xml.Unmarshal(data, v); err != nil {
		return &CallError{Kind: Validation, Message: "decoding XML response: " + err.Error()}
	}
	return nil
}
