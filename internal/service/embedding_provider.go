package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/embeddings"
	"github.com/formbricks/plagiarism-detector/internal/observability"
	"github.com/formbricks/plagiarism-detector/internal/registry"
	"github.com/formbricks/plagiarism-detector/pkg/cache"
	"github.com/formbricks/plagiarism-detector/pkg/vecmath"
)

// ModelRegistry is the subset of *registry.Registry the provider and orchestrator need.
type ModelRegistry interface {
	Describe(key string) (registry.ModelDescriptor, error)
	Acquire(ctx context.Context, key string) (embeddings.Backend, error)
	ListAvailable() []registry.ModelDescriptor
}

// embeddingKey identifies a cached vector. Vectors are only reused within one model.
type embeddingKey struct {
	model string
	text  string
}

func embeddingKeyString(k embeddingKey) string {
	return k.model + "\x00" + k.text
}

// EmbeddingProvider turns texts into unit-length vectors with a registry-managed backend.
// Repeated (model, text) pairs are served from an LRU so they map to the exact same vector.
type EmbeddingProvider struct {
	registry     ModelRegistry
	cache        *cache.LoaderCache[embeddingKey, embeddings.Vector]
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// EmbeddingProviderParams configures EmbeddingProvider. CacheSize 0 disables the vector cache;
// CacheMetrics and Logger may be nil.
type EmbeddingProviderParams struct {
	Registry     ModelRegistry
	CacheSize    int
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// NewEmbeddingProvider creates an EmbeddingProvider.
func NewEmbeddingProvider(p EmbeddingProviderParams) (*EmbeddingProvider, error) {
	vectors, err := cache.NewLoaderCache[embeddingKey, embeddings.Vector](p.CacheSize, embeddingKeyString)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EmbeddingProvider{
		registry:     p.Registry,
		cache:        vectors,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}, nil
}

// Embed returns one L2-normalized vector per text, in input order, each of the model's advertised
// length. The model key is checked before any backend work; the first use of a key loads it.
// Texts not in the cache are encoded in a single backend call.
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string, modelKey string) ([]embeddings.Vector, error) {
	if len(texts) == 0 {
		return nil, detecterrors.NewEmptyInputError("no texts to embed")
	}

	desc, err := p.registry.Describe(modelKey)
	if err != nil {
		return nil, err
	}

	backend, err := p.registry.Acquire(ctx, modelKey)
	if err != nil {
		return nil, err
	}

	keys := make([]embeddingKey, len(texts))
	for i, t := range texts {
		keys[i] = embeddingKey{model: modelKey, text: t}
	}

	vectors, hits, err := p.cache.FetchMany(ctx, keys, func(ctx context.Context, missing []embeddingKey) ([]embeddings.Vector, error) {
		return p.encode(ctx, backend, desc, missing)
	})
	if err != nil {
		return nil, err
	}

	if p.cache.Enabled() {
		p.recordCache(ctx, hits, len(texts)-hits)
	}

	p.logger.DebugContext(ctx, "embedded texts",
		"model", modelKey, "texts", len(texts), "cache_hits", hits, "dimensions", desc.Dimensions)

	return vectors, nil
}

func (p *EmbeddingProvider) encode(
	ctx context.Context, backend embeddings.Backend, desc registry.ModelDescriptor, keys []embeddingKey,
) ([]embeddings.Vector, error) {
	texts := make([]string, len(keys))
	for i, k := range keys {
		texts[i] = k.text
	}

	raw, err := backend.Encode(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if errors.Is(err, embeddings.ErrDimensions) {
			return nil, detecterrors.NewDimensionMismatchError("model %q: %v", desc.Key, err)
		}

		return nil, detecterrors.NewEmbeddingError(desc.Key, err)
	}

	if len(raw) != len(texts) {
		return nil, detecterrors.NewEmbeddingError(desc.Key,
			fmt.Errorf("%w: got %d, want %d", embeddings.ErrCountMismatch, len(raw), len(texts)))
	}

	out := make([]embeddings.Vector, len(raw))
	for i, v := range raw {
		if len(v) != desc.Dimensions {
			return nil, detecterrors.NewDimensionMismatchError(
				"model %q returned %d values for text %d, advertised %d", desc.Key, len(v), i, desc.Dimensions)
		}

		vec := make(embeddings.Vector, len(v))
		copy(vec, v)
		vecmath.NormalizeL2(vec)
		out[i] = vec
	}

	return out, nil
}

func (p *EmbeddingProvider) recordCache(ctx context.Context, hits, misses int) {
	if p.cacheMetrics == nil {
		return
	}

	p.cacheMetrics.RecordHits(ctx, observability.CacheEmbedding, hits)
	p.cacheMetrics.RecordMisses(ctx, observability.CacheEmbedding, misses)
}
