package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/efisher/payadmin/internal/application"
	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// backendErrorResponse carries a normalized backend error descriptor so the
// presentation layer can render title, message, and hint directly.
type backendErrorResponse struct {
	Error      string                `json:"error"`
	Descriptor model.ErrorDescriptor `json:"descriptor"`
}

// invokeResponse is the body for a successful dispatch.
type invokeResponse struct {
	Result    json.RawMessage `json:"result"`
	FromCache bool            `json:"fromCache"`
}

// cacheInfoResponse renders cache freshness for the operator.
type cacheInfoResponse struct {
	Cached        bool   `json:"cached"`
	AgeSeconds    int    `json:"ageSeconds"`
	NextAllowedAt string `json:"nextAllowedAt,omitempty"`
}

func toCacheInfoResponse(info application.CacheInfo) cacheInfoResponse {
	resp := cacheInfoResponse{
		Cached:     info.Cached,
		AgeSeconds: int(info.Age.Seconds()),
	}
	if info.Cached {
		resp.NextAllowedAt = info.NextAllowedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// writeDispatchError maps the dispatcher's error taxonomy onto HTTP statuses:
// configuration errors are the caller's to fix (412), timeouts map to 504,
// other transport failures to 502, and backend-declared errors to 502 with
// the full descriptor attached.
func writeDispatchError(w http.ResponseWriter, err error) {
	var cfgErr *driven.ConfigError
	if errors.As(err, &cfgErr) {
		writeError(w, http.StatusPreconditionFailed, cfgErr.Error())
		return
	}

	var trErr *driven.TransportError
	if errors.As(err, &trErr) {
		if trErr.Timeout {
			writeError(w, http.StatusGatewayTimeout, trErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, trErr.Error())
		return
	}

	var beErr *driven.BackendError
	if errors.As(err, &beErr) {
		writeJSON(w, http.StatusBadGateway, backendErrorResponse{
			Error:      beErr.Descriptor.UserMessage,
			Descriptor: beErr.Descriptor,
		})
		return
	}

	writeError(w, http.StatusBadRequest, err.Error())
}
