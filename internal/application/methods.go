package application

import (
	"encoding/json"
	"fmt"
)

// rateLimitedReads is the allow-list of backend read methods the backend
// refuses to re-serve more often than its minimum interval. Only these go
// through the read cache.
var rateLimitedReads = map[string]bool{
	"account.list":         true,
	"account.get":          true,
	"account.transactions": true,
	"beneficiary.list":     true,
	"beneficiary.get":      true,
	"payment.list":         true,
	"payment.get":          true,
}

// IsRateLimitedRead reports whether method is on the cached-read allow-list.
// Callers holding their own cache tier use it to route reads the same way the
// gateway does.
func IsRateLimitedRead(method string) bool {
	return rateLimitedReads[method]
}

// invalidationGraph maps each mutating method to the read methods whose
// cached entries it stales on success. Invalidation is prefix-based over the
// environment-scoped key space because one mutation affects every parameter
// variant of a listing.
var invalidationGraph = map[string][]string{
	"transfer.create": {
		"account.get", "account.list", "account.transactions",
	},
	"payout.create": {
		"account.get", "account.list", "account.transactions",
		"payment.list", "payment.get",
	},
	"beneficiary.create": {"beneficiary.list", "beneficiary.get"},
	"beneficiary.update": {"beneficiary.list", "beneficiary.get"},
	"beneficiary.delete": {"beneficiary.list", "beneficiary.get"},
}

// InvalidatedReads returns the read methods a successful mutation stales,
// so every cache tier applies the same graph.
func InvalidatedReads(method string) []string {
	return invalidationGraph[method]
}

// transferParams are the business-significant fields of transfer.create.
type transferParams struct {
	FromAccountID string `json:"fromAccountId"`
	ToAccountID   string `json:"toAccountId"`
	Amount        string `json:"amount"`
}

// payoutParams are the business-significant fields of payout.create.
type payoutParams struct {
	AccountID         string `json:"accountId"`
	Amount            string `json:"amount"`
	DestinationNumber string `json:"destinationNumber"`
}

// operationKeyFns derives a mutating call's operation key from its
// semantically significant fields only; the idempotency token itself never
// participates, so retries with identical business intent always resolve to
// the same key. Methods absent from this map are not idempotent mutations.
var operationKeyFns = map[string]func(params json.RawMessage) (string, error){
	"transfer.create": func(params json.RawMessage) (string, error) {
		var p transferParams
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("transfer.create params: %w", err)
		}
		return fmt.Sprintf("transfer:%s:%s:%s", p.FromAccountID, p.ToAccountID, p.Amount), nil
	},
	"payout.create": func(params json.RawMessage) (string, error) {
		var p payoutParams
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("payout.create params: %w", err)
		}
		return fmt.Sprintf("payout:%s:%s:%s", p.AccountID, p.Amount, p.DestinationNumber), nil
	},
}

// withIdempotencyToken returns params with the backend's idempotency
// parameter set, leaving every other field untouched.
func withIdempotencyToken(params json.RawMessage, token string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &m); err != nil {
			return nil, fmt.Errorf("attach idempotency token: %w", err)
		}
	}
	m["idempotencyKey"] = json.RawMessage(`"` + token + `"`)
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("attach idempotency token: %w", err)
	}
	return out, nil
}
