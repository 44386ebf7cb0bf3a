package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efisher/payadmin/internal/adapter/driven/vault"
	"github.com/efisher/payadmin/internal/application"
	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

// stubBackend answers gateway dispatches from a configurable function.
type stubBackend struct {
	call func(method string, params json.RawMessage) (*model.RPCResult, error)
}

func (s *stubBackend) Call(_ context.Context, _ model.Environment, method string, params json.RawMessage) (*model.RPCResult, error) {
	return s.call(method, params)
}

func (s *stubBackend) CallBinary(_ context.Context, _ model.Environment, _ string, payload []byte, _ map[string]string) (*model.RPCResult, error) {
	return &model.RPCResult{Payload: json.RawMessage(`{"bytes":` + jsonInt(len(payload)) + `}`)}, nil
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// memBeneficiaries is an in-memory BeneficiaryStore.
type memBeneficiaries struct {
	items map[string]model.Beneficiary
}

func newMemBeneficiaries() *memBeneficiaries {
	return &memBeneficiaries{items: make(map[string]model.Beneficiary)}
}

func (m *memBeneficiaries) key(env model.Environment, id string) string {
	return string(env) + "/" + id
}

func (m *memBeneficiaries) Upsert(_ context.Context, b model.Beneficiary) error {
	m.items[m.key(b.Environment, b.BackendID)] = b
	return nil
}

func (m *memBeneficiaries) Get(_ context.Context, env model.Environment, id string) (*model.Beneficiary, error) {
	b, ok := m.items[m.key(env, id)]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memBeneficiaries) List(_ context.Context, env model.Environment) ([]model.Beneficiary, error) {
	var out []model.Beneficiary
	for _, b := range m.items {
		if b.Environment == env {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBeneficiaries) Delete(_ context.Context, env model.Environment, id string) error {
	delete(m.items, m.key(env, id))
	return nil
}

// staticSecret is a test SecretSource with a fixed passphrase.
type staticSecret string

func (s staticSecret) MasterPassphrase() (string, error) { return string(s), nil }

func newTestServer(t *testing.T, backend driven.BackendClient) *httptest.Server {
	t.Helper()
	v := vault.NewFileVault(t.TempDir(), staticSecret("test-passphrase"))
	gateway := application.NewGateway(backend, application.NewReadCache(0), application.NewIdempotencyManager(), slog.Default())
	h := NewHandler(gateway, v, newMemBeneficiaries(), slog.Default())
	srv := httptest.NewServer(NewServeMux(h, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func okBackend() *stubBackend {
	return &stubBackend{call: func(method string, _ json.RawMessage) (*model.RPCResult, error) {
		return &model.RPCResult{Payload: json.RawMessage(`{"echo":"` + method + `"}`)}, nil
	}}
}

func TestHandler_InvokeRPC(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"method":"account.get","params":{"accountId":"A1"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"result":{"echo":"account.get"},"fromCache":false}`, string(body))

	// Identical read is served from the gateway's cache tier.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"method":"account.get","params":{"accountId":"A1"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"result":{"echo":"account.get"},"fromCache":true}`, string(body))
}

func TestHandler_InvokeRPCUnknownEnvironment(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/staging", `{"method":"account.get"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_InvokeRPCMissingMethod(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"params":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_InvokeRPCBackendErrorCarriesDescriptor(t *testing.T) {
	backend := &stubBackend{call: func(string, json.RawMessage) (*model.RPCResult, error) {
		return nil, &driven.BackendError{Descriptor: model.ErrorDescriptor{
			Code:               409,
			Title:              "Operation in progress",
			UserMessage:        "A request with this idempotency token is already being processed.",
			IdempotentConflict: true,
		}}
	}}
	srv := newTestServer(t, backend)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"method":"transfer.create","params":{"fromAccountId":"A","toAccountId":"B","amount":"1.00"}}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var decoded backendErrorResponse
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, 409, decoded.Descriptor.Code)
	assert.True(t, decoded.Descriptor.IdempotentConflict)
	assert.NotEmpty(t, decoded.Error)
}

func TestHandler_InvokeRPCConfigErrorIsPreconditionFailed(t *testing.T) {
	backend := &stubBackend{call: func(string, json.RawMessage) (*model.RPCResult, error) {
		return nil, &driven.ConfigError{Env: model.EnvPre, Err: errors.New("no usable credentials")}
	}}
	srv := newTestServer(t, backend)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"method":"system.ping"}`)
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestHandler_InvokeRPCTimeoutIsGatewayTimeout(t *testing.T) {
	backend := &stubBackend{call: func(string, json.RawMessage) (*model.RPCResult, error) {
		return nil, &driven.TransportError{Timeout: true}
	}}
	srv := newTestServer(t, backend)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"method":"system.ping"}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestHandler_CacheInfo(t *testing.T) {
	srv := newTestServer(t, okBackend())

	query := url.Values{}
	query.Set("method", "account.get")
	query.Set("params", `{"accountId":"A1"}`)
	infoURL := srv.URL + "/api/v1/rpc/pre/cache?" + query.Encode()

	resp, body := doJSON(t, http.MethodGet, infoURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var before cacheInfoResponse
	require.NoError(t, json.Unmarshal(body, &before))
	assert.False(t, before.Cached)

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rpc/pre", `{"method":"account.get","params":{"accountId":"A1"}}`)

	resp, body = doJSON(t, http.MethodGet, infoURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after cacheInfoResponse
	require.NoError(t, json.Unmarshal(body, &after))
	assert.True(t, after.Cached)
	assert.NotEmpty(t, after.NextAllowedAt)
}

func TestHandler_ConfigLifecycle(t *testing.T) {
	srv := newTestServer(t, okBackend())

	pair, err := vault.GenerateKeyPair()
	require.NoError(t, err)

	saveBody, err := json.Marshal(map[string]string{
		"privateKey":      pair.PrivateKeyPEM,
		"signingSystemId": "SYS-0042",
	})
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/v1/config/pre", string(saveBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), pair.Thumbprint)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/config/pre", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]any
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, true, status["configured"])
	assert.Equal(t, pair.Thumbprint, status["thumbprint"])
	assert.Equal(t, "SYS-0042", status["signingSystemId"])

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/config/pre", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/config/pre", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, false, status["configured"])
}

func TestHandler_SaveConfigRejectsWeakKey(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/v1/config/pre", `{"privateKey":"garbage","signingSystemId":"SYS-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "PEM")
}

func TestHandler_GenerateAndValidateKeys(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/keys/generate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair vault.KeyPair
	require.NoError(t, json.Unmarshal(body, &pair))
	assert.Contains(t, pair.PrivateKeyPEM, "BEGIN PRIVATE KEY")
	assert.Len(t, pair.Thumbprint, 40)

	validateBody, err := json.Marshal(map[string]string{"privateKey": pair.PrivateKeyPEM})
	require.NoError(t, err)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/keys/validate", string(validateBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var validation validateKeysResponse
	require.NoError(t, json.Unmarshal(body, &validation))
	require.NotNil(t, validation.PrivateKey)
	assert.True(t, validation.PrivateKey.Valid)
	assert.Equal(t, pair.Thumbprint, validation.PrivateKey.Thumbprint)
}

func TestHandler_UploadDocument(t *testing.T) {
	srv := newTestServer(t, okBackend())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/documents/pre?endpoint=/documents/upload", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	req.Header.Set("X-Document-Name", "contract.pdf")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_UploadDocumentRequiresEndpoint(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/documents/pre", "data")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_BeneficiaryCRUD(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/v1/beneficiaries/pre/BEN-1", `{"displayName":"ACME Ltd","notes":"supplier"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/beneficiaries/pre", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed []beneficiaryResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "BEN-1", listed[0].BackendID)
	assert.Equal(t, "ACME Ltd", listed[0].DisplayName)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/beneficiaries/pre/BEN-1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/beneficiaries/pre", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Empty(t, listed)
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer(t, okBackend())

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
