// Package client is a Go caller for the payadmin REST API. It carries its own
// cache tier for the rate-limited read methods, so tooling that repeatedly
// lists the same data is served locally instead of round-tripping to the
// admin service for every call. Mutations pass straight through and stale the
// local tier with the same invalidation graph the service applies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/efisher/payadmin/internal/application"
	"github.com/efisher/payadmin/internal/domain/model"
)

// APIClient calls one running payadmin instance.
type APIClient struct {
	baseURL string
	httpc   *http.Client
	cache   *application.ReadCache
}

// Option customizes an APIClient.
type Option func(*APIClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *APIClient) { c.httpc = httpc }
}

// WithCacheTTL sets the local cache tier's TTL; zero keeps the default.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *APIClient) { c.cache = application.NewReadCache(ttl) }
}

// New creates an APIClient for the admin API at baseURL, e.g.
// "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		cache:   application.NewReadCache(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the admin API. Descriptor is set when
// the service attached a normalized backend error.
type APIError struct {
	Status     int
	Message    string
	Descriptor *model.ErrorDescriptor
}

func (e *APIError) Error() string {
	if e.Descriptor != nil {
		return fmt.Sprintf("api status %d: %s: %s", e.Status, e.Descriptor.Title, e.Descriptor.UserMessage)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// invokeRequest mirrors the service's dispatch body.
type invokeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// invokeResponse mirrors the service's dispatch response.
type invokeResponse struct {
	Result    json.RawMessage `json:"result"`
	FromCache bool            `json:"fromCache"`
}

// errorBody covers both plain and descriptor-carrying error responses.
type errorBody struct {
	Error      string                 `json:"error"`
	Descriptor *model.ErrorDescriptor `json:"descriptor"`
}

// CacheStatus is the service-side freshness report for one read.
type CacheStatus struct {
	Cached        bool   `json:"cached"`
	AgeSeconds    int    `json:"ageSeconds"`
	NextAllowedAt string `json:"nextAllowedAt,omitempty"`
}

// Invoke dispatches a backend method through the admin service. Allow-listed
// reads are served from the local tier when fresh; the bool result reports a
// local cache hit. A hit on the service's own tier is not visible here.
func (c *APIClient) Invoke(ctx context.Context, env model.Environment, method string, params json.RawMessage) (json.RawMessage, bool, error) {
	if application.IsRateLimitedRead(method) {
		key, err := application.NewCacheKey(method, env, params)
		if err != nil {
			return nil, false, err
		}
		return c.cache.Fetch(ctx, key, func(ctx context.Context) (*model.RPCResult, error) {
			payload, err := c.dispatch(ctx, env, method, params)
			if err != nil {
				return nil, err
			}
			return &model.RPCResult{Payload: payload}, nil
		})
	}

	payload, err := c.dispatch(ctx, env, method, params)
	if err != nil {
		return nil, false, err
	}
	for _, readMethod := range application.InvalidatedReads(method) {
		c.cache.InvalidateMethod(readMethod, env)
	}
	return payload, false, nil
}

// CacheInfo reports the service-side cache freshness for a read call.
func (c *APIClient) CacheInfo(ctx context.Context, env model.Environment, method string, params json.RawMessage) (CacheStatus, error) {
	query := url.Values{}
	query.Set("method", method)
	if len(params) > 0 {
		query.Set("params", string(params))
	}

	var status CacheStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/rpc/%s/cache?%s", env, query.Encode()), nil, &status)
	return status, err
}

// TestConfig asks the service to perform a signed round trip with the
// environment's stored credentials.
func (c *APIClient) TestConfig(ctx context.Context, env model.Environment) (json.RawMessage, error) {
	var resp invokeResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/config/%s/test", env), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Health probes the service's liveness endpoint.
func (c *APIClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// dispatch posts one RPC body and unwraps the result payload.
func (c *APIClient) dispatch(ctx context.Context, env model.Environment, method string, params json.RawMessage) (json.RawMessage, error) {
	var resp invokeResponse
	body := invokeRequest{Method: method, Params: params}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/rpc/%s", env), body, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// do performs one request against the admin API, decoding a 2xx body into out
// and any other status into an APIError.
func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call admin api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(data)}
		var decoded errorBody
		if json.Unmarshal(data, &decoded) == nil && decoded.Error != "" {
			apiErr.Message = decoded.Error
			apiErr.Descriptor = decoded.Descriptor
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
