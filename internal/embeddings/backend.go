// Package embeddings defines the Backend capability used by the detection engine and the
// model-family implementations behind it (Ollama, OpenAI-compatible servers, feature hashing).
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Vector is a fixed-length embedding. Vectors are never mutated after creation.
type Vector = []float32

// Backend turns texts into vectors. Implementations must be safe for concurrent use once loaded.
type Backend interface {
	// Encode returns one vector per text, in input order.
	Encode(ctx context.Context, texts []string) ([]Vector, error)

	// Dimensions returns the advertised vector length.
	Dimensions() int
}

// Loader materializes a Backend. It may be slow and network-bound; the registry calls it at
// most once per model key at a time.
type Loader func(ctx context.Context) (Backend, error)

var (
	// ErrEmptyText is returned when a backend receives an empty text.
	ErrEmptyText = errors.New("embeddings: text cannot be empty")
	// ErrCountMismatch is returned when a backend returns a different number of vectors than texts.
	ErrCountMismatch = errors.New("embeddings: unexpected number of vectors returned")
	// ErrDimensions is returned when a backend returns vectors of the wrong length.
	ErrDimensions = errors.New("embeddings: unexpected vector dimensions")
)

const probeText = "dimension probe"

// Probe encodes a single short text and checks the result against the advertised dimensions.
// Loaders call it so that a misconfigured model fails at load time instead of mid-analysis.
func Probe(ctx context.Context, b Backend) error {
	vectors, err := b.Encode(ctx, []string{probeText})
	if err != nil {
		return fmt.Errorf("probe encode: %w", err)
	}

	return CheckVectors(vectors, 1, b.Dimensions())
}

// CheckVectors verifies count and per-vector length of a backend response.
func CheckVectors(vectors []Vector, wantCount, wantDims int) error {
	if len(vectors) != wantCount {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), wantCount)
	}

	for i, v := range vectors {
		if len(v) != wantDims {
			return fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensions, i, len(v), wantDims)
		}
	}

	return nil
}

func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts", ErrEmptyText)
	}

	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("%w: index %d", ErrEmptyText, i)
		}
	}

	return nil
}
