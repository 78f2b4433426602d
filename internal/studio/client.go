// Package studio is a typed client for the studio backend APIs: docker
// orchestration, model inference, board/hardware and logs.
package studio

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to one studio backend. Cross-cutting behaviour (browser id
// header, request ids, logging, metrics, tracing) is supplied as Middleware
// at construction.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Middleware wraps the transport used for every backend request.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type options struct {
	transport   http.RoundTripper
	middlewares []Middleware
	timeout     time.Duration
	tlsConfig   *tls.Config
}

// Option customises client construction.
type Option func(*options)

// WithTransport replaces the base transport. Middleware still wraps it.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithMiddleware appends middleware. The first one given is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithTimeout bounds non-streaming requests. Streaming calls are bounded by
// their context only.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTLSConfig sets the TLS configuration of the default transport.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// New constructs a Client for the backend at base.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, errors.New("backend base url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}

	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	rt := o.transport
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if o.tlsConfig != nil {
			t.TLSClientConfig = o.tlsConfig
		}
		rt = t
	}
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		rt = o.middlewares[i](rt)
	}

	return &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Transport: rt},
		timeout:    o.timeout,
	}, nil
}

// BaseURL returns the normalised backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the backend. JobID is set when the
// error body still names a deployment job.
type APIError struct {
	Status  int
	Message string
	JobID   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("studio request failed with status %d", e.Status)
	}
	return fmt.Sprintf("studio request failed (%d): %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of err if it is an *APIError, else 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// request describes one backend call. route is the path template used as the
// metrics and tracing label.
type request struct {
	method string
	path   string
	route  string
	query  url.Values
	body   any
	accept string
}

// send issues the request and returns the response for any status.
// The caller owns the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(withRoute(ctx, r.route), r.method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	return resp, nil
}

// stream issues the request and returns the body of a 2xx response. Non-2xx
// responses are converted to *APIError.
func (c *Client) stream(ctx context.Context, r request) (io.ReadCloser, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp.Body, nil
}

// do performs a bounded request and decodes a 2xx JSON body into v.
func (c *Client) do(ctx context.Context, r request, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.stream(ctx, r)
	if err != nil {
		return err
	}
	defer body.Close()

	if v == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", r.route, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		JobID   string `json:"job_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.JobID = payload.JobID
	switch {
	case payload.Error != "":
		apiErr.Message = payload.Error
	case payload.Message != "":
		apiErr.Message = payload.Message
	default:
		apiErr.Message = payload.Detail
	}
	return apiErr
}

type routeKey struct{}

func withRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

// RouteFromContext returns the path template of the backend call carried by
// ctx, or "other".
func RouteFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeKey{}).(string); ok {
		return route
	}
	return "other"
}
