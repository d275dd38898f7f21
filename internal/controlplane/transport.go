package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codekiln/langstar/internal/config"
)

// Request is a single control plane call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Timeout bounds this call only. Zero uses the transport default.
	Timeout time.Duration
}

// Response is the raw result of a call that reached the server.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Transport executes authenticated JSON requests. Any response that reaches
// the server is returned regardless of status; only failures to get a
// response are reported as errors.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TransportError is a failure to obtain any response from the server.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPTransport is the Transport used against the real control plane.
type HTTPTransport struct {
	baseURL     string
	credentials config.Provider
	httpClient  *http.Client
	timeout     time.Duration
	userAgent   string
}

// Option customises an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(t *HTTPTransport) {
		if h != nil {
			t.httpClient = h
		}
	}
}

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

func NewHTTPTransport(baseURL string, credentials config.Provider, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  &http.Client{},
		timeout:     30 * time.Second,
		userAgent:   "langstar",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Do(ctx context.Context, r Request) (*Response, error) {
	creds, err := t.credentials.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := t.baseURL + r.Path
	if len(r.Query) > 0 {
		endpoint += "?" + r.Query.Encode()
	}

	var reqBody io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("X-Api-Key", creds.APIKey)
	if creds.WorkspaceID != "" {
		req.Header.Set("X-Tenant-Id", creds.WorkspaceID)
	}
	if creds.OrganizationID != "" {
		req.Header.Set("X-Organization-Id", creds.OrganizationID)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: r.Method, Path: r.Path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: r.Method, Path: r.Path, Err: fmt.Errorf("read response body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(respBody),
	}, nil
}
