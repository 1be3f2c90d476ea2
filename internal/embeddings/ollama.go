package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaTimeout is the HTTP timeout for a single Ollama request.
	DefaultOllamaTimeout = 60 * time.Second

	apiPathTags  = "/api/tags"
	apiPathEmbed = "/api/embed"
)

// OllamaBackend generates embeddings with a sentence-transformer model served by Ollama.
type OllamaBackend struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOption configures an OllamaBackend.
type OllamaOption func(*OllamaBackend)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(b *OllamaBackend) {
		b.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client (tests use the httptest server client).
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(b *OllamaBackend) {
		b.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(b *OllamaBackend) {
		b.client.Timeout = timeout
	}
}

// NewOllamaBackend creates a backend for model with the given advertised dimensions.
func NewOllamaBackend(model string, dimensions int, opts ...OllamaOption) *OllamaBackend {
	b := &OllamaBackend{
		baseURL:    DefaultOllamaURL,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: DefaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// OllamaLoader returns a Loader that checks Ollama is reachable, the model is pulled, and the
// model produces vectors of the advertised dimensions.
func OllamaLoader(model string, dimensions int, opts ...OllamaOption) Loader {
	return func(ctx context.Context) (Backend, error) {
		b := NewOllamaBackend(model, dimensions, opts...)

		if err := b.IsAvailable(ctx); err != nil {
			return nil, err
		}

		ok, err := b.HasModel(ctx)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, fmt.Errorf("ollama model %q is not pulled (run: ollama pull %s)", model, model)
		}

		if err := Probe(ctx, b); err != nil {
			return nil, err
		}

		return b, nil
	}
}

// Encode generates embeddings for texts in a single /api/embed call.
func (b *OllamaBackend) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+apiPathEmbed, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, formatErrorBody(resp.Body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if err := CheckVectors(result.Embeddings, len(texts), b.dimensions); err != nil {
		return nil, err
	}

	return result.Embeddings, nil
}

// Dimensions returns the advertised vector length.
func (b *OllamaBackend) Dimensions() int {
	return b.dimensions
}

// ModelName returns the Ollama model tag.
func (b *OllamaBackend) ModelName() string {
	return b.model
}

// IsAvailable checks if Ollama is running and accessible.
func (b *OllamaBackend) IsAvailable(ctx context.Context) error {
	resp, err := b.doGet(ctx, apiPathTags)
	if err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	resp.Body.Close()

	return nil
}

// HasModel checks if the model is available in Ollama. Untagged names match ":latest".
func (b *OllamaBackend) HasModel(ctx context.Context) (bool, error) {
	resp, err := b.doGet(ctx, apiPathTags)
	if err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}

	for _, m := range result.Models {
		if m.Name == b.model || m.Name == b.model+":latest" {
			return true, nil
		}
	}

	return false, nil
}

// doGet performs a GET request to path. The caller closes the response body.
func (b *OllamaBackend) doGet(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	return resp, nil
}

// formatErrorBody reads the response body for error messages.
func formatErrorBody(body io.Reader) string {
	respBody, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}

	return string(respBody)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name string `json:"name"`
}

var _ Backend = (*OllamaBackend)(nil)
