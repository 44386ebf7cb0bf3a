package driven

import (
	"context"
	"encoding/json"

	"github.com/efisher/payadmin/internal/domain/model"
)

// BackendClient defines the driven port for the signed RPC transport to the
// payment backend. Implementations load credentials per call so a live key
// rotation takes effect immediately; a missing credential record surfaces as
// a configuration error distinct from transport failures.
type BackendClient interface {
	// Call posts a signed JSON request envelope for the named method and
	// returns the backend's result payload. Errors are one of
	// *ConfigError, *TransportError, or *BackendError.
	Call(ctx context.Context, env model.Environment, method string, params json.RawMessage) (*model.RPCResult, error)

	// CallBinary posts raw bytes to a method-specific endpoint path with a
	// detached RSA-SHA256 signature over the exact payload. extraHeaders
	// are attached verbatim after the signing headers.
	CallBinary(ctx context.Context, env model.Environment, endpoint string, payload []byte, extraHeaders map[string]string) (*model.RPCResult, error)
}
