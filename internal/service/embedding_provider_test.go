package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/embeddings"
	"github.com/formbricks/plagiarism-detector/internal/registry"
	"github.com/formbricks/plagiarism-detector/pkg/vecmath"
)

// stubBackend returns fixed vectors per text; unknown texts map to the first basis vector.
type stubBackend struct {
	dims    int
	vectors map[string]embeddings.Vector
	err     error

	calls   atomic.Int32
	mu      sync.Mutex
	batches [][]string
}

func newStubBackend(dims int, vectors map[string]embeddings.Vector) *stubBackend {
	return &stubBackend{dims: dims, vectors: vectors}
}

func (b *stubBackend) Encode(_ context.Context, texts []string) ([]embeddings.Vector, error) {
	b.calls.Add(1)

	b.mu.Lock()
	b.batches = append(b.batches, append([]string(nil), texts...))
	b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}

	out := make([]embeddings.Vector, len(texts))
	for i, t := range texts {
		v, ok := b.vectors[t]
		if !ok {
			v = make(embeddings.Vector, b.dims)
			v[0] = 1
		}

		out[i] = append(embeddings.Vector(nil), v...)
	}

	return out, nil
}

func (b *stubBackend) Dimensions() int {
	return b.dims
}

func (b *stubBackend) lastBatch() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.batches) == 0 {
		return nil
	}

	return b.batches[len(b.batches)-1]
}

type fakeCacheMetrics struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (f *fakeCacheMetrics) RecordHits(_ context.Context, _ string, n int) {
	f.hits.Add(int64(n))
}

func (f *fakeCacheMetrics) RecordMisses(_ context.Context, _ string, n int) {
	f.misses.Add(int64(n))
}

// newStubRegistry builds a registry with one model per key, each served by the given backend.
func newStubRegistry(t *testing.T, backend embeddings.Backend, keys ...string) (*registry.Registry, *atomic.Int32) {
	t.Helper()

	var loads atomic.Int32

	models := make([]registry.Model, len(keys))
	for i, key := range keys {
		models[i] = registry.Model{
			Key:         key,
			DisplayName: key,
			Backend:     "stub",
			Dimensions:  backend.Dimensions(),
			Load: func(context.Context) (embeddings.Backend, error) {
				loads.Add(1)

				return backend, nil
			},
		}
	}

	reg, err := registry.New(registry.Params{Models: models, LoadTimeout: time.Second})
	require.NoError(t, err)

	return reg, &loads
}

func newTestProvider(t *testing.T, reg ModelRegistry, cacheSize int, metrics *fakeCacheMetrics) *EmbeddingProvider {
	t.Helper()

	params := EmbeddingProviderParams{Registry: reg, CacheSize: cacheSize}
	if metrics != nil {
		params.CacheMetrics = metrics
	}

	p, err := NewEmbeddingProvider(params)
	require.NoError(t, err)

	return p
}

func TestEmbeddingProvider_Embed(t *testing.T) {
	t.Run("returns normalized vectors in input order", func(t *testing.T) {
		backend := newStubBackend(3, map[string]embeddings.Vector{
			"a": {3, 4, 0},
			"b": {0, 0, 2},
		})
		reg, _ := newStubRegistry(t, backend, "m")
		p := newTestProvider(t, reg, 0, nil)

		vectors, err := p.Embed(context.Background(), []string{"b", "a"}, "m")
		require.NoError(t, err)
		require.Len(t, vectors, 2)

		assert.InDeltaSlice(t, []float32{0, 0, 1}, vectors[0], 1e-6)
		assert.InDeltaSlice(t, []float32{0.6, 0.8, 0}, vectors[1], 1e-6)
		assert.InDelta(t, 1.0, vecmath.Norm(vectors[1]), 1e-6)
	})

	t.Run("empty input", func(t *testing.T) {
		reg, loads := newStubRegistry(t, newStubBackend(3, nil), "m")
		p := newTestProvider(t, reg, 0, nil)

		vectors, err := p.Embed(context.Background(), nil, "m")
		assert.Nil(t, vectors)
		require.ErrorIs(t, err, detecterrors.ErrEmptyInput)
		assert.Zero(t, loads.Load())
	})

	t.Run("unknown model fails before loading", func(t *testing.T) {
		backend := newStubBackend(3, nil)
		reg, loads := newStubRegistry(t, backend, "m")
		p := newTestProvider(t, reg, 0, nil)

		_, err := p.Embed(context.Background(), []string{"a"}, "not-a-real-model")
		require.ErrorIs(t, err, detecterrors.ErrUnknownModel)
		assert.Zero(t, loads.Load())
		assert.Zero(t, backend.calls.Load())
	})

	t.Run("backend failure becomes embedding error", func(t *testing.T) {
		backend := newStubBackend(3, nil)
		backend.err = errors.New("connection refused")
		reg, _ := newStubRegistry(t, backend, "m")
		p := newTestProvider(t, reg, 0, nil)

		_, err := p.Embed(context.Background(), []string{"a", "b"}, "m")
		require.ErrorIs(t, err, detecterrors.ErrEmbedding)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("wrong vector length is a dimension mismatch", func(t *testing.T) {
		backend := newStubBackend(3, map[string]embeddings.Vector{"short": {1, 0}})
		reg, _ := newStubRegistry(t, backend, "m")
		p := newTestProvider(t, reg, 0, nil)

		_, err := p.Embed(context.Background(), []string{"a", "short"}, "m")
		require.ErrorIs(t, err, detecterrors.ErrDimensionMismatch)
	})

	t.Run("cancelled context is returned as is", func(t *testing.T) {
		backend := newStubBackend(3, nil)
		reg, _ := newStubRegistry(t, backend, "m")
		p := newTestProvider(t, reg, 0, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		backend.err = ctx.Err()

		_, err := p.Embed(ctx, []string{"a", "b"}, "m")
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, detecterrors.ErrEmbedding)
	})
}

func TestEmbeddingProvider_Cache(t *testing.T) {
	t.Run("repeated texts are served from cache", func(t *testing.T) {
		backend := newStubBackend(2, map[string]embeddings.Vector{
			"a": {1, 0},
			"b": {0, 1},
			"c": {1, 1},
		})
		reg, _ := newStubRegistry(t, backend, "m")
		metrics := &fakeCacheMetrics{}
		p := newTestProvider(t, reg, 16, metrics)

		first, err := p.Embed(context.Background(), []string{"a", "b"}, "m")
		require.NoError(t, err)

		second, err := p.Embed(context.Background(), []string{"b", "c", "a"}, "m")
		require.NoError(t, err)

		assert.Equal(t, int32(2), backend.calls.Load())
		assert.Equal(t, []string{"c"}, backend.lastBatch())
		assert.Equal(t, first[0], second[2])
		assert.Equal(t, first[1], second[0])
		assert.Equal(t, int64(2), metrics.hits.Load())
		assert.Equal(t, int64(3), metrics.misses.Load())
	})

	t.Run("vectors are not shared across models", func(t *testing.T) {
		backend := newStubBackend(2, map[string]embeddings.Vector{"a": {1, 0}})
		reg, _ := newStubRegistry(t, backend, "m1", "m2")
		p := newTestProvider(t, reg, 16, nil)

		_, err := p.Embed(context.Background(), []string{"a"}, "m1")
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), []string{"a"}, "m2")
		require.NoError(t, err)

		assert.Equal(t, int32(2), backend.calls.Load())
	})

	t.Run("disabled cache always encodes", func(t *testing.T) {
		backend := newStubBackend(2, nil)
		reg, _ := newStubRegistry(t, backend, "m")
		metrics := &fakeCacheMetrics{}
		p := newTestProvider(t, reg, 0, metrics)

		for range 3 {
			_, err := p.Embed(context.Background(), []string{"a", "b"}, "m")
			require.NoError(t, err)
		}

		assert.Equal(t, int32(3), backend.calls.Load())
		assert.Zero(t, metrics.hits.Load())
		assert.Zero(t, metrics.misses.Load())
	})

	t.Run("model is loaded once", func(t *testing.T) {
		backend := newStubBackend(2, nil)
		reg, loads := newStubRegistry(t, backend, "m")
		p := newTestProvider(t, reg, 0, nil)

		for range 3 {
			_, err := p.Embed(context.Background(), []string{"a", "b"}, "m")
			require.NoError(t, err)
		}

		assert.Equal(t, int32(1), loads.Load())
	})
}
