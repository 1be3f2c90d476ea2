// Package cache provides a generic loader cache combining LRU storage with
// singleflight to coalesce concurrent loads for the same key.
package cache

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ErrLoadCount is returned by FetchMany when the batch loader returns the wrong number of values.
var ErrLoadCount = errors.New("cache: batch loader returned unexpected number of values")

// Source reports where a fetched value came from.
type Source int

// Fetch sources.
const (
	// SourceCache means the value was already stored.
	SourceCache Source = iota
	// SourceLoad means this call ran the loader alone.
	SourceLoad
	// SourceShared means the load was coalesced with concurrent callers for the same key.
	SourceShared
)

// String returns the metric-friendly name of the source.
func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceLoad:
		return "load"
	case SourceShared:
		return "shared"
	default:
		return "unknown"
	}
}

// LoaderCache stores values loaded on miss and runs at most one load per key at a time.
// A non-positive size disables storage; loads are still coalesced.
// Keys are converted to strings internally via keyToString for LRU and singleflight.
type LoaderCache[K comparable, V any] struct {
	lru         *lru.Cache[string, V]
	group       singleflight.Group
	keyToString func(K) string
}

// NewLoaderCache creates a loader cache with the given max entries and key serializer.
func NewLoaderCache[K comparable, V any](maxEntries int, keyToString func(K) string) (*LoaderCache[K, V], error) {
	c := &LoaderCache[K, V]{keyToString: keyToString}
	if maxEntries <= 0 {
		return c, nil
	}

	lruCache, err := lru.New[string, V](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	c.lru = lruCache

	return c, nil
}

// Enabled reports whether values are stored between calls.
func (c *LoaderCache[K, V]) Enabled() bool {
	return c.lru != nil
}

// Peek returns the stored value for key without loading or touching recency.
func (c *LoaderCache[K, V]) Peek(key K) (V, bool) {
	if c.lru == nil {
		return zero[V](), false
	}

	return c.lru.Peek(c.keyToString(key))
}

// Add stores v under key.
func (c *LoaderCache[K, V]) Add(key K, v V) {
	if c.lru != nil {
		c.lru.Add(c.keyToString(key), v)
	}
}

// Fetch returns the value for key, loading it via load on miss. Concurrent misses for the same
// key share one load. The loader receives a context detached from the caller's cancellation so
// an abandoned caller cannot fail the load for the others; loaders bound their own duration.
// A caller whose ctx ends while waiting gets ctx.Err() and the load carries on.
// Failed loads are not stored.
func (c *LoaderCache[K, V]) Fetch(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, Source, error) {
	return c.fetch(ctx, key, load, true)
}

// FetchManaged is Fetch for loaders that decide themselves whether a loaded value is kept: the
// cache never stores the result, the loader calls Add when it should be. Concurrent misses still
// share one load.
func (c *LoaderCache[K, V]) FetchManaged(
	ctx context.Context, key K, load func(context.Context, K) (V, error),
) (V, Source, error) {
	return c.fetch(ctx, key, load, false)
}

func (c *LoaderCache[K, V]) fetch(
	ctx context.Context, key K, load func(context.Context, K) (V, error), store bool,
) (V, Source, error) {
	keyStr := c.keyToString(key)
	if v, ok := c.get(keyStr); ok {
		return v, SourceCache, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(keyStr, func() (any, error) {
		// A flight for the same key may have completed between the miss above and this call.
		if v, ok := c.get(keyStr); ok {
			return v, nil
		}

		loaded, err := load(loadCtx, key)
		if err != nil {
			return nil, err
		}

		if store {
			c.add(keyStr, loaded)
		}

		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return zero[V](), SourceLoad, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero[V](), SourceLoad, res.Err
		}

		src := SourceLoad
		if res.Shared {
			src = SourceShared
		}

		return res.Val.(V), src, nil
	}
}

// FetchMany returns one value per key, in order. Stored values are reused; the distinct missing
// keys are passed to loadMany in one call (with the caller's ctx) and stored on success.
// hits is the number of keys served from storage.
func (c *LoaderCache[K, V]) FetchMany(
	ctx context.Context,
	keys []K,
	loadMany func(context.Context, []K) ([]V, error),
) (values []V, hits int, err error) {
	values = make([]V, len(keys))

	var (
		missing    []K
		missingPos = make(map[string][]int)
		missingStr []string
	)

	for i, key := range keys {
		keyStr := c.keyToString(key)
		if v, ok := c.get(keyStr); ok {
			values[i] = v
			hits++

			continue
		}

		if _, seen := missingPos[keyStr]; !seen {
			missing = append(missing, key)
			missingStr = append(missingStr, keyStr)
		}

		missingPos[keyStr] = append(missingPos[keyStr], i)
	}

	if len(missing) == 0 {
		return values, hits, nil
	}

	loaded, err := loadMany(ctx, missing)
	if err != nil {
		return nil, hits, err
	}

	if len(loaded) != len(missing) {
		return nil, hits, fmt.Errorf("%w: got %d, want %d", ErrLoadCount, len(loaded), len(missing))
	}

	for j, keyStr := range missingStr {
		c.add(keyStr, loaded[j])

		for _, i := range missingPos[keyStr] {
			values[i] = loaded[j]
		}
	}

	return values, hits, nil
}

// Invalidate removes the entry for key. Reports whether an entry was present.
func (c *LoaderCache[K, V]) Invalidate(key K) bool {
	if c.lru == nil {
		return false
	}

	return c.lru.Remove(c.keyToString(key))
}

// InvalidateAll removes all entries.
func (c *LoaderCache[K, V]) InvalidateAll() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

// Len returns the number of entries in the cache.
func (c *LoaderCache[K, V]) Len() int {
	if c.lru == nil {
		return 0
	}

	return c.lru.Len()
}

func (c *LoaderCache[K, V]) get(keyStr string) (V, bool) {
	if c.lru == nil {
		return zero[V](), false
	}

	return c.lru.Get(keyStr)
}

func (c *LoaderCache[K, V]) add(keyStr string, v V) {
	if c.lru != nil {
		c.lru.Add(keyStr, v)
	}
}

func zero[V any]() (z V) { return z }
