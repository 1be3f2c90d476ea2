package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/formbricks/plagiarism-detector/pkg/vecmath"
)

// DefaultHashDimensions is the vector length of the hash backend unless configured otherwise.
const DefaultHashDimensions = 256

// HashBackend is a deterministic, offline backend based on feature hashing of lowercased word
// tokens. Texts sharing vocabulary get correlated vectors; it needs no model download and is
// used for development and tests.
type HashBackend struct {
	dimensions int
}

// NewHashBackend creates a hash backend producing vectors of the given length.
func NewHashBackend(dimensions int) *HashBackend {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}

	return &HashBackend{dimensions: dimensions}
}

// HashLoader returns a Loader for a hash backend. Loading never fails.
func HashLoader(dimensions int) Loader {
	return func(_ context.Context) (Backend, error) {
		return NewHashBackend(dimensions), nil
	}
}

// Encode returns one L2-normalized vector per text.
func (b *HashBackend) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	out := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out[i] = b.vectorFor(text)
	}

	return out, nil
}

// Dimensions returns the vector length.
func (b *HashBackend) Dimensions() int {
	return b.dimensions
}

func (b *HashBackend) vectorFor(text string) Vector {
	vec := make(Vector, b.dimensions)

	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(b.dimensions) //nolint:gosec // dimensions is positive

		if sum[4]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	vecmath.NormalizeL2(vec)

	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ Backend = (*HashBackend)(nil)
