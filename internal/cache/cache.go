// Package cache provides the read cache behind the record repository.
//
// Entries are opaque byte blobs under a small set of keys. Every cache carries
// a generation counter: Invalidate bumps it and drops all entries, and Store
// only succeeds when the caller's generation is still current. A read that
// started before a write therefore cannot repopulate the cache with data
// fetched before that write.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrStale is returned by Store when the cache was invalidated after the
// caller took its generation snapshot.
var ErrStale = errors.New("cache: generation changed")

// Cache is a generation-guarded TTL cache.
type Cache interface {
	// Generation returns the current generation.
	Generation(ctx context.Context) (uint64, error)
	// Load returns the value under key if present, unexpired and written in
	// the current generation.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	// Store writes value under key if gen is still current.
	Store(ctx context.Context, key string, gen uint64, value []byte, ttl time.Duration) error
	// Invalidate drops every entry and bumps the generation.
	Invalidate(ctx context.Context) error
}
