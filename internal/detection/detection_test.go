package detection

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/similarity"
)

var fourTexts = []string{"alpha", "beta", "gamma", "delta"}

func sampleMatrix() similarity.Matrix {
	return similarity.Matrix{
		{1, 0.91, 0.40, 0.75},
		{0.91, 1, 0.75, 0.10},
		{0.40, 0.75, 1, 0.88},
		{0.75, 0.10, 0.88, 1},
	}
}

func TestDetect_ThresholdAndOrdering(t *testing.T) {
	pairs, err := New(0).Detect(sampleMatrix(), fourTexts, 0.7)
	require.NoError(t, err)

	got := make([][2]int, len(pairs))
	for i, p := range pairs {
		got[i] = [2]int{p.Index1, p.Index2}
	}

	// 0.91, 0.88, then the two 0.75 ties ordered by index.
	assert.Equal(t, [][2]int{{0, 1}, {2, 3}, {0, 3}, {1, 2}}, got)
	assert.Equal(t, "alpha", pairs[0].Preview1)
	assert.Equal(t, "beta", pairs[0].Preview2)
}

func TestDetect_InclusiveThreshold(t *testing.T) {
	pairs, err := New(0).Detect(sampleMatrix(), fourTexts, 0.91)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 0.91, pairs[0].Similarity)
}

func TestDetect_NoSelfOrDuplicatePairs(t *testing.T) {
	pairs, err := New(0).Detect(sampleMatrix(), fourTexts, 0)
	require.NoError(t, err)
	require.Len(t, pairs, 6)

	seen := map[[2]int]bool{}
	for _, p := range pairs {
		assert.Less(t, p.Index1, p.Index2)
		assert.False(t, seen[[2]int{p.Index1, p.Index2}])
		seen[[2]int{p.Index1, p.Index2}] = true
	}
}

func TestDetect_MonotonicInThreshold(t *testing.T) {
	d := New(0)

	prev := math.MaxInt
	for _, th := range []float64{0, 0.1, 0.4, 0.7, 0.75, 0.8, 0.9, 0.95, 1} {
		pairs, err := d.Detect(sampleMatrix(), fourTexts, th)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(pairs), prev, "threshold %g", th)
		prev = len(pairs)
	}
}

func TestDetect_EmptyResultIsNotNil(t *testing.T) {
	pairs, err := New(0).Detect(sampleMatrix(), fourTexts, 0.99)
	require.NoError(t, err)
	assert.NotNil(t, pairs)
	assert.Empty(t, pairs)
}

func TestDetect_Errors(t *testing.T) {
	d := New(0)

	for _, th := range []float64{-0.01, 1.01, math.NaN()} {
		_, err := d.Detect(sampleMatrix(), fourTexts, th)
		require.ErrorIs(t, err, detecterrors.ErrInvalidThreshold)
	}

	_, err := d.Detect(sampleMatrix(), fourTexts[:3], 0.5)
	require.ErrorIs(t, err, detecterrors.ErrDimensionMismatch)

	_, err = d.Detect(similarity.Matrix{{1, 0}, {0}}, []string{"a", "b"}, 0.5)
	require.ErrorIs(t, err, detecterrors.ErrDimensionMismatch)
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("word ", 30) // 150 chars

	tests := []struct {
		name   string
		text   string
		budget int
		want   string
	}{
		{name: "short text untouched", text: "  hello world  ", budget: 100, want: "hello world"},
		{name: "exact budget", text: "abcde", budget: 5, want: "abcde"},
		{name: "cut at word boundary", text: long, budget: 100, want: strings.TrimSpace(strings.Repeat("word ", 19)) + "..."},
		{name: "no late space keeps hard cut", text: "abcdefghij klmnopqrstuvwxyz", budget: 20, want: "abcdefghij klmnopqrs..."},
		{name: "runes not bytes", text: "ééééé ééééé", budget: 8, want: "ééééé éé..."},
		{name: "trims ideographic space at cut", text: "aaaaaaaaa\u3000bbbbbbbbbb", budget: 10, want: "aaaaaaaaa..."},
		{name: "trims no-break space at cut", text: "aaaaaaaaa\u00a0bbbbbbbbbb", budget: 10, want: "aaaaaaaaa..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.text, tt.budget))
		})
	}
}

func TestNew_DefaultPreviewLength(t *testing.T) {
	assert.Equal(t, DefaultPreviewLength, New(0).PreviewLength())
	assert.Equal(t, 40, New(40).PreviewLength())
}
