// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/efisher/payadmin/internal/adapter/driven/vault"
	"github.com/efisher/payadmin/internal/application"
	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

// maxDocumentBytes bounds binary uploads accepted by the API.
const maxDocumentBytes = 16 << 20

// Handler serves the administrative REST API over the trust and transport core.
type Handler struct {
	gateway       *application.Gateway
	vault         driven.CredentialVault
	beneficiaries driven.BeneficiaryStore
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	gateway *application.Gateway,
	credentialVault driven.CredentialVault,
	beneficiaries driven.BeneficiaryStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		gateway:       gateway,
		vault:         credentialVault,
		beneficiaries: beneficiaries,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/rpc/{environment}", h.InvokeRPC)
	mux.HandleFunc("GET /api/v1/rpc/{environment}/cache", h.CacheInfo)
	mux.HandleFunc("POST /api/v1/documents/{environment}", h.UploadDocument)

	mux.HandleFunc("PUT /api/v1/config/{environment}", h.SaveConfig)
	mux.HandleFunc("GET /api/v1/config/{environment}", h.GetConfig)
	mux.HandleFunc("DELETE /api/v1/config/{environment}", h.DeleteConfig)
	mux.HandleFunc("POST /api/v1/config/{environment}/test", h.TestConfig)

	mux.HandleFunc("POST /api/v1/keys/generate", h.GenerateKeys)
	mux.HandleFunc("POST /api/v1/keys/validate", h.ValidateKeys)

	mux.HandleFunc("GET /api/v1/beneficiaries/{environment}", h.ListBeneficiaries)
	mux.HandleFunc("PUT /api/v1/beneficiaries/{environment}/{backendID}", h.UpsertBeneficiary)
	mux.HandleFunc("DELETE /api/v1/beneficiaries/{environment}/{backendID}", h.DeleteBeneficiary)

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// pathEnvironment parses the {environment} path value, writing a 400 on failure.
func pathEnvironment(w http.ResponseWriter, r *http.Request) (model.Environment, bool) {
	env, err := model.ParseEnvironment(r.PathValue("environment"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return env, true
}

// invokeRequest is the body of POST /api/v1/rpc/{environment}.
type invokeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// InvokeRPC dispatches a named backend method through the gateway.
func (h *Handler) InvokeRPC(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, "method is required")
		return
	}

	payload, fromCache, err := h.gateway.Invoke(r.Context(), env, req.Method, req.Params)
	if err != nil {
		h.logger.Error("rpc dispatch failed", "environment", env, "rpc_method", req.Method, "error", err)
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invokeResponse{Result: payload, FromCache: fromCache})
}

// CacheInfo reports freshness of a cached read for display next to the data.
// Params arrive as a JSON object in the "params" query parameter.
func (h *Handler) CacheInfo(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	method := r.URL.Query().Get("method")
	if method == "" {
		writeError(w, http.StatusBadRequest, "method is required")
		return
	}
	params := json.RawMessage(r.URL.Query().Get("params"))

	info, err := h.gateway.CacheInfo(env, method, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toCacheInfoResponse(info))
}

// UploadDocument forwards raw bytes to the backend's binary endpoint named
// by the "endpoint" query parameter. An X-Document-Name header, when
// present, is forwarded alongside the signing headers.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "empty document")
		return
	}

	headers := map[string]string{}
	if name := r.Header.Get("X-Document-Name"); name != "" {
		headers["X-Document-Name"] = name
	}

	result, err := h.gateway.UploadDocument(r.Context(), env, endpoint, payload, headers)
	if err != nil {
		h.logger.Error("document upload failed", "environment", env, "endpoint", endpoint, "error", err)
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invokeResponse{Result: result})
}

// saveConfigRequest is the body of PUT /api/v1/config/{environment}.
type saveConfigRequest struct {
	PrivateKey      string `json:"privateKey"`
	SigningSystemID string `json:"signingSystemId"`
}

// SaveConfig validates uploaded key material and stores it encrypted. The
// thumbprint is always derived server-side from the key, never trusted from
// the request.
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	var req saveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SigningSystemID == "" {
		writeError(w, http.StatusBadRequest, "signingSystemId is required")
		return
	}

	validation := vault.ValidatePrivateKey(req.PrivateKey)
	if !validation.Valid {
		writeError(w, http.StatusUnprocessableEntity, validation.Error)
		return
	}

	record := model.CredentialRecord{
		PrivateKey:        req.PrivateKey,
		SigningSystemID:   req.SigningSystemID,
		SigningThumbprint: validation.Thumbprint,
	}
	if err := h.vault.Save(env, record); err != nil {
		h.logger.Error("save credentials failed", "environment", env, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save configuration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"thumbprint": validation.Thumbprint})
}

// GetConfig reports whether credentials are configured; the thumbprint is
// included when the stored record decrypts, so the operator can verify which
// key is active without ever seeing it.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	resp := map[string]any{"configured": h.vault.Exists(env)}
	if record, err := h.vault.Load(env); err == nil {
		resp["thumbprint"] = record.SigningThumbprint
		resp["signingSystemId"] = record.SigningSystemID
	} else if !errors.Is(err, driven.ErrCredentialsAbsent) {
		writeError(w, http.StatusInternalServerError, "could not read configuration")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteConfig removes the environment's stored credentials.
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	if err := h.vault.Delete(env); err != nil {
		h.logger.Error("delete credentials failed", "environment", env, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete configuration")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestConfig performs a signed round trip so the operator can verify stored
// credentials against the live backend.
func (h *Handler) TestConfig(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	payload, _, err := h.gateway.Invoke(r.Context(), env, "system.ping", nil)
	if err != nil {
		h.logger.Error("connection test failed", "environment", env, "error", err)
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invokeResponse{Result: payload})
}

// GenerateKeys produces a fresh onboarding key pair. The private half is
// returned once and never stored.
func (h *Handler) GenerateKeys(w http.ResponseWriter, r *http.Request) {
	pair, err := vault.GenerateKeyPair()
	if err != nil {
		h.logger.Error("key generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not generate key pair")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// validateKeysRequest is the body of POST /api/v1/keys/validate. Either or
// both fields may be present.
type validateKeysRequest struct {
	PrivateKey  string `json:"privateKey,omitempty"`
	Certificate string `json:"certificate,omitempty"`
}

// validateKeysResponse mirrors the request shape with validation outcomes.
type validateKeysResponse struct {
	PrivateKey  *vault.KeyValidation  `json:"privateKey,omitempty"`
	Certificate *vault.CertValidation `json:"certificate,omitempty"`
}

// ValidateKeys checks uploaded key and certificate material without storing it.
func (h *Handler) ValidateKeys(w http.ResponseWriter, r *http.Request) {
	var req validateKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PrivateKey == "" && req.Certificate == "" {
		writeError(w, http.StatusBadRequest, "privateKey or certificate is required")
		return
	}

	var resp validateKeysResponse
	if req.PrivateKey != "" {
		v := vault.ValidatePrivateKey(req.PrivateKey)
		resp.PrivateKey = &v
	}
	if req.Certificate != "" {
		v := vault.ValidateCertificate(req.Certificate)
		resp.Certificate = &v
	}

	writeJSON(w, http.StatusOK, resp)
}

// beneficiaryRequest is the body of PUT /api/v1/beneficiaries/{environment}/{backendID}.
type beneficiaryRequest struct {
	DisplayName string `json:"displayName"`
	Notes       string `json:"notes"`
}

// beneficiaryResponse is the JSON representation of a beneficiary annotation.
type beneficiaryResponse struct {
	BackendID   string `json:"backendId"`
	DisplayName string `json:"displayName"`
	Notes       string `json:"notes"`
	UpdatedAt   string `json:"updatedAt"`
}

// ListBeneficiaries returns all local annotations for the environment.
func (h *Handler) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	all, err := h.beneficiaries.List(r.Context(), env)
	if err != nil {
		h.logger.Error("list beneficiaries failed", "environment", env, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]beneficiaryResponse, 0, len(all))
	for _, b := range all {
		resp = append(resp, beneficiaryResponse{
			BackendID:   b.BackendID,
			DisplayName: b.DisplayName,
			Notes:       b.Notes,
			UpdatedAt:   b.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpsertBeneficiary stores or replaces one annotation.
func (h *Handler) UpsertBeneficiary(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}
	backendID := r.PathValue("backendID")

	var req beneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.beneficiaries.Upsert(r.Context(), model.Beneficiary{
		Environment: env,
		BackendID:   backendID,
		DisplayName: req.DisplayName,
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.Error("upsert beneficiary failed", "environment", env, "backend_id", backendID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteBeneficiary removes one annotation.
func (h *Handler) DeleteBeneficiary(w http.ResponseWriter, r *http.Request) {
	env, ok := pathEnvironment(w, r)
	if !ok {
		return
	}

	if err := h.beneficiaries.Delete(r.Context(), env, r.PathValue("backendID")); err != nil {
		h.logger.Error("delete beneficiary failed", "environment", env, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
