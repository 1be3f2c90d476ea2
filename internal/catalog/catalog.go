// Package catalog turns the configured model catalog into registry models with concrete loaders.
package catalog

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/formbricks/plagiarism-detector/internal/config"
	"github.com/formbricks/plagiarism-detector/internal/embeddings"
	"github.com/formbricks/plagiarism-detector/internal/googleai"
	"github.com/formbricks/plagiarism-detector/internal/openai"
	"github.com/formbricks/plagiarism-detector/internal/registry"
)

// Models returns one registry.Model per catalog entry of cfg, in listing order.
// Remote backends are throttled by cfg.EmbeddingRateLimit.
func Models(cfg *config.Config) ([]registry.Model, error) {
	specs := cfg.ModelCatalog()
	transport := otelhttp.NewTransport(http.DefaultTransport)

	models := make([]registry.Model, 0, len(specs))

	for _, spec := range specs {
		load, err := loaderFor(cfg, spec, transport)
		if err != nil {
			return nil, err
		}

		models = append(models, registry.Model{
			Key:         spec.Key,
			DisplayName: spec.DisplayName,
			Description: spec.Description,
			Backend:     string(spec.Backend),
			Dimensions:  spec.Dimensions,
			Load:        load,
		})
	}

	return models, nil
}

func loaderFor(cfg *config.Config, spec config.ModelSpec, transport http.RoundTripper) (embeddings.Loader, error) {
	switch spec.Backend {
	case config.BackendOllama:
		return embeddings.OllamaLoader(spec.Model, spec.Dimensions,
			embeddings.WithBaseURL(cfg.OllamaURL),
			embeddings.WithHTTPClient(newHTTPClient(transport)),
			embeddings.WithTimeout(embeddings.DefaultOllamaTimeout),
		), nil
	case config.BackendOpenAI:
		load := openai.Loader(cfg.OpenAIAPIKey,
			openai.WithModel(spec.Model),
			openai.WithDimensions(spec.Dimensions),
		)

		return embeddings.RateLimitedLoader(load, cfg.EmbeddingRateLimit), nil
	case config.BackendCompat:
		load := embeddings.CompatLoader(embeddings.CompatConfig{
			BaseURL:    cfg.CompatURL,
			APIKey:     cfg.CompatAPIKey,
			Model:      spec.Model,
			Dimensions: spec.Dimensions,
			HTTPClient: newHTTPClient(transport),
		})

		return embeddings.RateLimitedLoader(load, cfg.EmbeddingRateLimit), nil
	case config.BackendGemini:
		load := googleai.Loader(cfg.GoogleAPIKey,
			googleai.WithModel(spec.Model),
			googleai.WithDimensions(spec.Dimensions),
		)

		return embeddings.RateLimitedLoader(load, cfg.EmbeddingRateLimit), nil
	case config.BackendHash:
		return embeddings.HashLoader(spec.Dimensions), nil
	default:
		return nil, fmt.Errorf("model %q: unsupported backend %q", spec.Key, spec.Backend)
	}
}

// newHTTPClient returns a fresh *http.Client per model so per-backend timeouts do not race.
// Failures are not retried here; callers retry a failed load.
func newHTTPClient(transport http.RoundTripper) *http.Client {
	return &http.Client{Transport: transport}
}
