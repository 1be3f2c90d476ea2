// Package openai provides an embeddings.Backend on top of the official OpenAI Go SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/formbricks/plagiarism-detector/internal/embeddings"
)

var (
	// ErrMissingAPIKey is returned when the backend is configured without an API key.
	ErrMissingAPIKey = errors.New("openai: API key is required")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
)

const (
	// DefaultDimensions is the native size of text-embedding-3-small.
	DefaultDimensions = 1536
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)
)

// Client calls the OpenAI embeddings API via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
}

// ClientOption configures the Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	model      string
	dimensions int
	sdkOpts    []option.RequestOption
}

// WithDimensions sets the requested embedding dimension.
func WithDimensions(dim int) ClientOption {
	return func(o *clientOptions) {
		o.dimensions = dim
	}
}

// WithModel sets the embedding model name. Empty uses DefaultModel.
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the SDK at another endpoint (tests, proxies).
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.sdkOpts = append(o.sdkOpts, option.WithBaseURL(url))
	}
}

// NewClient creates an OpenAI embeddings client. SDK retries are disabled; callers decide.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	o := clientOptions{model: DefaultModel, dimensions: DefaultDimensions}
	for _, opt := range opts {
		opt(&o)
	}

	if o.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	sdkOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, o.sdkOpts...)

	return &Client{
		sdk:        openaisdk.NewClient(sdkOpts...),
		model:      o.model,
		dimensions: o.dimensions,
	}, nil
}

// Loader returns an embeddings.Loader that builds the client and probes it once.
func Loader(apiKey string, opts ...ClientOption) embeddings.Loader {
	return func(ctx context.Context) (embeddings.Backend, error) {
		c, err := NewClient(apiKey, opts...)
		if err != nil {
			return nil, err
		}

		if err := embeddings.Probe(ctx, c); err != nil {
			return nil, err
		}

		return c, nil
	}
}

// Encode returns one embedding per text from a single batch request.
func (c *Client) Encode(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", embeddings.ErrEmptyText)
	}

	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: index %d", embeddings.ErrEmptyText, i)
		}
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      openaisdk.EmbeddingModel(c.model),
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([]embeddings.Vector, len(data))
	for i, d := range data {
		vec := make(embeddings.Vector, len(d.Embedding))
		for j := range d.Embedding {
			vec[j] = float32(d.Embedding[j])
		}

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
