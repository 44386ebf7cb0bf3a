package driven

import (
	"fmt"

	"github.com/efisher/payadmin/internal/domain/model"
)

// ConfigError marks a terminal configuration failure: missing or unusable
// credentials, or an environment without a configured base URL. Never
// retried automatically.
type ConfigError struct {
	Env model.Environment
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for environment %q: %v", e.Env, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError marks a failed network round trip: connection failure,
// timeout, or a non-2xx HTTP status. Status is zero when no response was
// received. Retryable at the caller's discretion; this layer never retries.
type TransportError struct {
	Status  int
	Body    string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return "backend call timed out"
	case e.Status != 0:
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	default:
		return fmt.Sprintf("backend call failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError carries a backend-declared error after normalization.
type BackendError struct {
	Descriptor model.ErrorDescriptor
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Descriptor.Code, e.Descriptor.UserMessage)
}
