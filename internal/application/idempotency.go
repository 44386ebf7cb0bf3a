package application

import (
	"sync"

	"github.com/google/uuid"
)

// IdempotencyManager maps operation keys to the idempotency tokens handed to
// the backend. An operation key is derived from a mutating call's
// business-significant fields only, so retries of the same financial intent
// resolve to the same token and the backend collapses them into one effect.
//
// State is process memory only. An operator retry across a restart is a new
// logical attempt bounded by the backend's own idempotency window; that is
// an accepted operational tradeoff.
type IdempotencyManager struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewIdempotencyManager creates an empty manager.
func NewIdempotencyManager() *IdempotencyManager {
	return &IdempotencyManager{tokens: make(map[string]string)}
}

// TokenFor returns the token for the operation key, minting and storing a
// fresh one on first sight. Concurrent callers with the same key always
// observe the same token.
func (m *IdempotencyManager) TokenFor(operationKey string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, ok := m.tokens[operationKey]; ok {
		return token
	}
	token := uuid.NewString()
	m.tokens[operationKey] = token
	return token
}

// Retire forgets the token for the operation key. Called after success and
// after every failure except an idempotent-conflict, where the token must
// survive so a later retry lands on the same in-flight backend operation.
func (m *IdempotencyManager) Retire(operationKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, operationKey)
}
