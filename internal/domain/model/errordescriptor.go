package model

// ErrorDescriptor is the normalized form of a backend-declared error,
// derived from the static code table. Read-only; never persisted.
type ErrorDescriptor struct {
	// Code is the backend's numeric error code.
	Code int `json:"code"`
	// Title is a short human-readable name for the failure.
	Title string `json:"title"`
	// UserMessage is suitable for direct display to the operator.
	UserMessage string `json:"userMessage"`
	// Hint is a longer remediation string, empty when none applies.
	Hint string `json:"hint,omitempty"`
	// Retryable marks transport-class backend codes the caller may retry.
	Retryable bool `json:"retryable"`
	// IdempotentConflict marks the one code meaning "a request with this
	// idempotency token is already being processed". It is the sole input
	// to the idempotency manager's retain-or-retire decision.
	IdempotentConflict bool `json:"idempotentConflict"`
}
