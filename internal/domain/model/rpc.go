package model

import (
	"encoding/json"
	"time"
)

// RPCProtocolVersion is the protocol version sent in every request envelope.
const RPCProtocolVersion = "2.0"

// RPCRequest is the JSON envelope posted to the backend's RPC endpoint.
type RPCRequest struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params"`
	ID              string          `json:"id"`
}

// RPCError is the error object the backend embeds in a well-formed response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCResponse is the JSON envelope returned by the backend. Exactly one of
// Result and Error is set on a well-formed response. NextAllowedAt, when
// present, is the earliest instant the backend will re-serve the same read.
type RPCResponse struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ID              string          `json:"id"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *RPCError       `json:"error,omitempty"`
	NextAllowedAt   *time.Time      `json:"nextAllowedAt,omitempty"`
}

// RPCResult is the successful outcome of a dispatched call.
type RPCResult struct {
	// Payload is the backend's result object, verbatim.
	Payload json.RawMessage
	// NextAllowedAt carries the backend's advertised next-allowed-retry
	// time for the same read, nil when the response did not declare one.
	NextAllowedAt *time.Time
}
