package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/plagiarism-detector/pkg/vecmath"
)

func TestHashBackend_Deterministic(t *testing.T) {
	b := NewHashBackend(64)

	first, err := b.Encode(context.Background(), []string{"The quick brown fox", "jumps over"})
	require.NoError(t, err)

	second, err := b.Encode(context.Background(), []string{"The quick brown fox", "jumps over"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Len(t, first[0], 64)
}

func TestHashBackend_NormalizedVectors(t *testing.T) {
	b := NewHashBackend(128)

	vectors, err := b.Encode(context.Background(), []string{"a short sentence about cats"})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, vecmath.Norm(vectors[0]), 1e-6)
}

func TestHashBackend_CaseAndPunctuationInsensitive(t *testing.T) {
	b := NewHashBackend(0)
	assert.Equal(t, DefaultHashDimensions, b.Dimensions())

	vectors, err := b.Encode(context.Background(), []string{"Hello, World!", "hello world"})
	require.NoError(t, err)

	assert.Equal(t, vectors[0], vectors[1])
}

func TestHashBackend_NoTokensGivesZeroVector(t *testing.T) {
	b := NewHashBackend(16)

	vectors, err := b.Encode(context.Background(), []string{"?!"})
	require.NoError(t, err)

	assert.Zero(t, vecmath.Norm(vectors[0]))
}

func TestHashBackend_RejectsEmpty(t *testing.T) {
	b := NewHashBackend(16)

	_, err := b.Encode(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyText)

	_, err = b.Encode(context.Background(), []string{"ok", ""})
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestHashBackend_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashBackend(16).Encode(ctx, []string{"text"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestHashLoader(t *testing.T) {
	b, err := HashLoader(32)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 32, b.Dimensions())
	require.NoError(t, Probe(context.Background(), b))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"it", "s", "2024", "café"}, tokenize("It's 2024 -- Café!"))
	assert.Empty(t, tokenize("   "))
}

func TestCheckVectors(t *testing.T) {
	require.NoError(t, CheckVectors([]Vector{{1, 2}, {3, 4}}, 2, 2))
	require.ErrorIs(t, CheckVectors([]Vector{{1, 2}}, 2, 2), ErrCountMismatch)
	require.ErrorIs(t, CheckVectors([]Vector{{1, 2}, {3}}, 2, 2), ErrDimensions)
}
