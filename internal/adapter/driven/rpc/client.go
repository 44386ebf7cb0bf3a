// Package rpc implements the signed dispatcher for the payment backend's
// JSON RPC and binary upload endpoints, plus the error normalizer.
package rpc

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efisher/payadmin/internal/adapter/driven/vault"
	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

const (
	headerSignature  = "X-Signature"
	headerSystem     = "X-Signing-System"
	headerThumbprint = "X-Signing-Thumbprint"

	// defaultCallTimeout bounds every outbound call.
	defaultCallTimeout = 15 * time.Second
)

// Compile-time interface satisfaction check.
var _ driven.BackendClient = (*Client)(nil)

// EnvelopeSigner produces the X-Signature header value for a JSON request
// envelope. The deployed backend accepts a static placeholder; the strategy
// is pluggable so a real envelope signature can be swapped in.
type EnvelopeSigner interface {
	SignEnvelope(body []byte, record model.CredentialRecord) (string, error)
}

// StaticEnvelopeSigner emits the constant placeholder the backend currently
// accepts for JSON calls. Binary uploads always carry a real RSA signature.
type StaticEnvelopeSigner struct{}

// SignEnvelope returns the static placeholder signature.
func (StaticEnvelopeSigner) SignEnvelope([]byte, model.CredentialRecord) (string, error) {
	return "static-envelope-v1", nil
}

// Client dispatches signed calls to the payment backend. Credentials are
// loaded from the vault on every call so a key rotation takes effect
// immediately.
type Client struct {
	vault    driven.CredentialVault
	baseURLs map[model.Environment]string
	http     *http.Client
	signer   EnvelopeSigner
	timeout  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client, typically for httptest servers.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithSigner overrides the envelope signing strategy.
func WithSigner(s EnvelopeSigner) Option {
	return func(c *Client) { c.signer = s }
}

// NewClient creates a dispatcher over the given vault and per-environment
// RPC base URLs.
func NewClient(v driven.CredentialVault, baseURLs map[model.Environment]string, opts ...Option) *Client {
	c := &Client{
		vault:    v,
		baseURLs: baseURLs,
		http:     &http.Client{},
		signer:   StaticEnvelopeSigner{},
		timeout:  defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts a signed JSON envelope for the named method and returns the
// backend's result payload.
func (c *Client) Call(ctx context.Context, env model.Environment, method string, params json.RawMessage) (*model.RPCResult, error) {
	record, baseURL, err := c.credentials(env)
	if err != nil {
		return nil, err
	}

	if params == nil {
		params = json.RawMessage(`{}`)
	}
	envelope := model.RPCRequest{
		ProtocolVersion: model.RPCProtocolVersion,
		Method:          method,
		Params:          params,
		ID:              uuid.NewString(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal request envelope: %w", err)
	}

	signature, err := c.signer.SignEnvelope(body, record)
	if err != nil {
		return nil, &driven.ConfigError{Env: env, Err: fmt.Errorf("sign envelope: %w", err)}
	}

	headers := map[string]string{
		"Content-Type":   "application/json",
		headerSignature:  signature,
		headerSystem:     record.SigningSystemID,
		headerThumbprint: record.SigningThumbprint,
	}

	result, err := c.post(ctx, baseURL, body, headers)
	if err != nil {
		return nil, err
	}

	slog.Debug("backend call complete", "environment", env, "method", method, "id", envelope.ID)
	return result, nil
}

// CallBinary posts raw bytes to a method-specific endpoint path resolved
// against the environment's base URL, signing the exact payload with
// RSA-SHA256.
func (c *Client) CallBinary(ctx context.Context, env model.Environment, endpoint string, payload []byte, extraHeaders map[string]string) (*model.RPCResult, error) {
	record, baseURL, err := c.credentials(env)
	if err != nil {
		return nil, err
	}

	key, err := vault.ParseRSAPrivateKey(record.PrivateKey)
	if err != nil {
		return nil, &driven.ConfigError{Env: env, Err: fmt.Errorf("stored private key: %w", err)}
	}

	digest := sha256.Sum256(payload)
	rawSig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, &driven.ConfigError{Env: env, Err: fmt.Errorf("sign payload: %w", err)}
	}
	// The backend rejects signatures containing line breaks.
	signature := strings.NewReplacer("\r", "", "\n", "").Replace(base64.StdEncoding.EncodeToString(rawSig))

	target, err := resolveEndpoint(baseURL, endpoint)
	if err != nil {
		return nil, &driven.ConfigError{Env: env, Err: err}
	}

	headers := map[string]string{
		"Content-Type":   "application/octet-stream",
		headerSignature:  signature,
		headerSystem:     record.SigningSystemID,
		headerThumbprint: record.SigningThumbprint,
	}
	for k, v := range extraHeaders {
		headers[k] = v
	}

	return c.post(ctx, target, payload, headers)
}

// credentials resolves the environment's base URL and loads its credential
// record. Either missing piece is a terminal configuration error.
func (c *Client) credentials(env model.Environment) (model.CredentialRecord, string, error) {
	baseURL, ok := c.baseURLs[env]
	if !ok || baseURL == "" {
		return model.CredentialRecord{}, "", &driven.ConfigError{Env: env, Err: errors.New("no base URL configured")}
	}

	record, err := c.vault.Load(env)
	if err != nil {
		return model.CredentialRecord{}, "", &driven.ConfigError{Env: env, Err: err}
	}

	return record, baseURL, nil
}

// post performs the bounded HTTP round trip and decodes the RPC response
// envelope. Timeouts, network failures, and non-2xx statuses surface as
// TransportError; an RPC-level error object surfaces as BackendError.
func (c *Client) post(ctx context.Context, target string, body []byte, headers map[string]string) (*model.RPCResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &driven.TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &driven.TransportError{Timeout: true, Err: err}
		}
		return nil, &driven.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &driven.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &driven.TransportError{Status: resp.StatusCode, Body: string(raw)}
	}

	var envelope model.RPCResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &driven.TransportError{Status: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode response envelope: %w", err)}
	}

	if envelope.Error != nil {
		return nil, &driven.BackendError{Descriptor: Normalize(envelope.Error)}
	}

	return &model.RPCResult{Payload: envelope.Result, NextAllowedAt: envelope.NextAllowedAt}, nil
}

// resolveEndpoint resolves a method-specific endpoint path (with optional
// query parameters) against the environment's base URL.
func resolveEndpoint(baseURL, endpoint string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	return base.ResolveReference(ref).String(), nil
}
