// Package googleai provides an embeddings.Backend on top of the Google Gen AI SDK (Gemini API).
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/genai"

	"github.com/formbricks/plagiarism-detector/internal/embeddings"
)

var (
	// ErrMissingAPIKey is returned when the backend is configured without an API key.
	ErrMissingAPIKey = errors.New("googleai: API key is required")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
)

const (
	// DefaultDimensions is the reduced output size requested from gemini-embedding-001.
	DefaultDimensions = 768
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "gemini-embedding-001"
)

// Client calls the Gemini embeddings API via the Google Gen AI SDK.
type Client struct {
	client     *genai.Client
	model      string
	dimensions int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient creates a Gemini embeddings client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &Client{
		client:     genaiClient,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.dimensions <= 0 || client.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	return client, nil
}

// Loader returns an embeddings.Loader that builds the client and probes it once.
func Loader(apiKey string, opts ...ClientOption) embeddings.Loader {
	return func(ctx context.Context) (embeddings.Backend, error) {
		c, err := NewClient(ctx, apiKey, opts...)
		if err != nil {
			return nil, err
		}

		if err := embeddings.Probe(ctx, c); err != nil {
			return nil, err
		}

		return c, nil
	}
}

// Encode embeds all texts in one EmbedContent call; one content per text.
func (c *Client) Encode(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", embeddings.ErrEmptyText)
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: index %d", embeddings.ErrEmptyText, i)
		}

		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	out := make([]embeddings.Vector, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vec := make(embeddings.Vector, len(e.Values))
		copy(vec, e.Values)
		out[i] = vec
	}

	if err := embeddings.CheckVectors(out, len(texts), c.dimensions); err != nil {
		return nil, err
	}

	return out, nil
}

// Dimensions returns the requested embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

var _ embeddings.Backend = (*Client)(nil)
