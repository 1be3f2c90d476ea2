package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrMissingBaseURL is returned when a compat backend is configured without an endpoint.
var ErrMissingBaseURL = errors.New("embeddings: OpenAI-compatible base URL is required")

// CompatConfig configures a backend for any server exposing the OpenAI /embeddings API
// (self-hosted sentence-transformers servers, LocalAI, vLLM, ...).
type CompatConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	// HTTPClient overrides the SDK default client when set.
	HTTPClient *http.Client
}

// CompatBackend implements Backend against an OpenAI-compatible embeddings endpoint.
type CompatBackend struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewCompatBackend creates a backend from cfg.
func NewCompatBackend(cfg CompatConfig) (*CompatBackend, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &CompatBackend{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}, nil
}

// CompatLoader returns a Loader that builds the client and probes the endpoint once.
func CompatLoader(cfg CompatConfig) Loader {
	return func(ctx context.Context) (Backend, error) {
		b, err := NewCompatBackend(cfg)
		if err != nil {
			return nil, err
		}

		if err := Probe(ctx, b); err != nil {
			return nil, err
		}

		return b, nil
	}
}

// Encode generates embeddings for texts in one batch request.
func (b *CompatBackend) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: b.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([]Vector, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}

	if err := CheckVectors(vectors, len(texts), b.dimensions); err != nil {
		return nil, err
	}

	return vectors, nil
}

// Dimensions returns the advertised vector length.
func (b *CompatBackend) Dimensions() int {
	return b.dimensions
}

var _ Backend = (*CompatBackend)(nil)
