package rpc

import (
	"github.com/efisher/payadmin/internal/domain/model"
)

// codeIdempotencyConflict is the single backend code meaning "a request with
// this idempotency token is already being processed". The idempotency
// manager keys its retain-or-retire decision off this code alone.
const codeIdempotencyConflict = 409

// knownError is one row of the static error code table.
type knownError struct {
	title     string
	message   string
	hint      string
	retryable bool
}

// errorTable maps backend error codes to operator-facing descriptions.
var errorTable = map[int]knownError{
	1001: {
		title:   "Invalid parameters",
		message: "The backend rejected the request parameters.",
		hint:    "Check the method's required fields and value formats.",
	},
	1002: {
		title:   "Unknown method",
		message: "The backend does not recognize the requested method.",
		hint:    "The dashboard may be newer than the backend deployment.",
	},
	1003: {
		title:   "Signature rejected",
		message: "The backend could not verify the request signature.",
		hint:    "Re-save the signing configuration and run a connection test.",
	},
	2001: {
		title:   "Insufficient funds",
		message: "The source account does not hold enough funds for this operation.",
		hint:    "Check the account balance and any pending operations.",
	},
	2002: {
		title:   "Account not found",
		message: "The backend has no account with the given identifier.",
	},
	2003: {
		title:   "Beneficiary not found",
		message: "The backend has no beneficiary with the given identifier.",
	},
	2004: {
		title:   "Amount limit exceeded",
		message: "The operation amount exceeds the configured limit.",
		hint:    "Limits are managed on the backend side per signing system.",
	},
	409: {
		title:   "Operation in progress",
		message: "A request with this idempotency token is already being processed.",
		hint:    "Wait for the in-flight operation to settle before retrying.",
	},
	502: {
		title:     "Backend unavailable",
		message:   "The backend gateway returned an invalid upstream response.",
		hint:      "Usually transient; retry shortly.",
		retryable: true,
	},
	503: {
		title:     "Backend overloaded",
		message:   "The backend is temporarily unable to serve requests.",
		hint:      "Usually transient; retry shortly.",
		retryable: true,
	},
	504: {
		title:     "Backend timeout",
		message:   "The backend gateway timed out waiting for an upstream response.",
		hint:      "Usually transient; retry shortly.",
		retryable: true,
	},
}

// Normalize maps a backend-declared error to its structured descriptor.
// Codes absent from the table keep the backend-supplied message under a
// generic title so the operator never sees a blank error.
func Normalize(rpcErr *model.RPCError) model.ErrorDescriptor {
	desc := model.ErrorDescriptor{
		Code:               rpcErr.Code,
		IdempotentConflict: rpcErr.Code == codeIdempotencyConflict,
	}

	known, ok := errorTable[rpcErr.Code]
	if !ok {
		desc.Title = "Backend error"
		desc.UserMessage = rpcErr.Message
		return desc
	}

	desc.Title = known.title
	desc.UserMessage = known.message
	desc.Hint = known.hint
	desc.Retryable = known.retryable
	return desc
}
