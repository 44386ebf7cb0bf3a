// Package application orchestrates the trust and transport core: the read
// cache, the idempotency manager, and the signed dispatcher behind them.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

// Gateway is the request-handling core every caller goes through. Reads on
// the rate-limited allow-list are served from the server-tier cache with
// request coalescing; idempotent mutations carry a managed token; successful
// mutations fire the invalidation graph.
type Gateway struct {
	backend driven.BackendClient
	cache   *ReadCache
	idem    *IdempotencyManager
	logger  *slog.Logger
}

// NewGateway wires the gateway over its collaborators.
func NewGateway(backend driven.BackendClient, cache *ReadCache, idem *IdempotencyManager, logger *slog.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		cache:   cache,
		idem:    idem,
		logger:  logger,
	}
}

// Invoke dispatches a named backend method. The bool result reports whether
// the payload was served from cache.
func (g *Gateway) Invoke(ctx context.Context, env model.Environment, method string, params json.RawMessage) (json.RawMessage, bool, error) {
	if rateLimitedReads[method] {
		return g.invokeRead(ctx, env, method, params)
	}
	payload, err := g.invokeMutation(ctx, env, method, params)
	return payload, false, err
}

// invokeRead serves an allow-listed read through the cache.
func (g *Gateway) invokeRead(ctx context.Context, env model.Environment, method string, params json.RawMessage) (json.RawMessage, bool, error) {
	key, err := NewCacheKey(method, env, params)
	if err != nil {
		return nil, false, err
	}

	return g.cache.Fetch(ctx, key, func(ctx context.Context) (*model.RPCResult, error) {
		return g.backend.Call(ctx, env, method, params)
	})
}

// invokeMutation dispatches a mutating method. For idempotent mutations the
// operation key is derived from business-significant params and a managed
// token is attached. After a confirmed success both cache invalidation and
// token retirement happen; their relative order is not significant.
func (g *Gateway) invokeMutation(ctx context.Context, env model.Environment, method string, params json.RawMessage) (json.RawMessage, error) {
	operationKey := ""
	if keyFn, ok := operationKeyFns[method]; ok {
		derived, err := keyFn(params)
		if err != nil {
			return nil, err
		}
		operationKey = derived

		token := g.idem.TokenFor(operationKey)
		params, err = withIdempotencyToken(params, token)
		if err != nil {
			return nil, err
		}
	}

	result, err := g.backend.Call(ctx, env, method, params)
	if err != nil {
		if operationKey != "" && !isIdempotentConflict(err) {
			g.idem.Retire(operationKey)
		}
		return nil, err
	}

	if operationKey != "" {
		g.idem.Retire(operationKey)
	}
	for _, readMethod := range invalidationGraph[method] {
		removed := g.cache.InvalidateMethod(readMethod, env)
		if removed > 0 {
			g.logger.Debug("cache invalidated", "mutation", method, "read_method", readMethod, "environment", env, "entries", removed)
		}
	}

	return result.Payload, nil
}

// UploadDocument forwards a binary payload to the dispatcher's signed
// binary endpoint.
func (g *Gateway) UploadDocument(ctx context.Context, env model.Environment, endpoint string, payload []byte, headers map[string]string) (json.RawMessage, error) {
	result, err := g.backend.CallBinary(ctx, env, endpoint, payload, headers)
	if err != nil {
		return nil, err
	}
	return result.Payload, nil
}

// CacheInfo reports freshness of the cached entry for a read call, for
// display next to the data.
func (g *Gateway) CacheInfo(env model.Environment, method string, params json.RawMessage) (CacheInfo, error) {
	key, err := NewCacheKey(method, env, params)
	if err != nil {
		return CacheInfo{}, err
	}
	return g.cache.Info(key), nil
}

// isIdempotentConflict reports whether err is the backend's "token already
// being processed" signal, the one case where the token must survive.
func isIdempotentConflict(err error) bool {
	var backendErr *driven.BackendError
	return errors.As(err, &backendErr) && backendErr.Descriptor.IdempotentConflict
}
