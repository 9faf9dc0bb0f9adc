package listing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ErrInternal is surfaced to callers when a listing query fails; the
// underlying cause goes to the log, never to the client.
var ErrInternal = errors.New("listing: internal error")

// Source computes one page of results for a normalized request,
// returning the items and the total count over the filtered set.
type Source[T any] func(ctx context.Context, req PageRequest) ([]T, int, error)

// Executor wraps a Source with a short-lived in-memory cache and
// single-flight deduplication so a burst of identical requests computes
// the page once.
type Executor[T any] struct {
	name   string
	source Source[T]
	cache  *memoryCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewExecutor builds an executor for one entity listing. The name keys
// the cache namespace and log entries.
func NewExecutor[T any](name string, source Source[T], sliding, absolute time.Duration, logger *slog.Logger) *Executor[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor[T]{
		name:   name,
		source: source,
		cache:  newMemoryCache(sliding, absolute),
		logger: logger,
	}
}

// Execute normalizes the request and returns the matching page, served
// from cache when an identical request is still warm.
func (e *Executor[T]) Execute(ctx context.Context, req PageRequest) (Page[T], error) {
	req = req.Normalize()
	key := e.cacheKey(req)

	if cached, ok := e.cache.get(key); ok {
		return cached.(Page[T]), nil
	}

	ch := e.group.DoChan(key, func() (any, error) {
		items, total, err := e.source(ctx, req)
		if err != nil {
			return Page[T]{}, err
		}
		page := NewPage(items, req, total)
		e.cache.set(key, page)
		return page, nil
	})

	select {
	case <-ctx.Done():
		return Page[T]{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			e.logger.Error("listing query failed",
				slog.String("entity", e.name),
				slog.String("actor", shared.ActorFromContext(ctx)),
				slog.Any("request", req),
				slog.Any("error", res.Err),
			)
			return Page[T]{}, ErrInternal
		}
		return res.Val.(Page[T]), nil
	}
}

// cacheKey serializes the full normalized request so distinct requests
// never collide.
func (e *Executor[T]) cacheKey(req PageRequest) string {
	data, _ := json.Marshal(req)
	return e.name + ":" + string(data)
}
