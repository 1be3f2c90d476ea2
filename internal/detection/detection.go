// Package detection extracts the text pairs whose similarity meets a threshold.
package detection

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/similarity"
)

// DefaultPreviewLength is the preview budget in characters when none is configured.
const DefaultPreviewLength = 100

const (
	ellipsis = "..."
	// wordBoundaryRatio: a cut is moved back to the last space only if that space lies beyond
	// this fraction of the budget.
	wordBoundaryRatio = 0.8
)

// Pair is a flagged pair of texts, identified by their input positions (Index1 < Index2).
type Pair struct {
	Index1     int     `json:"index_1"`
	Index2     int     `json:"index_2"`
	Similarity float64 `json:"similarity"`
	Preview1   string  `json:"text_1_preview"`
	Preview2   string  `json:"text_2_preview"`
}

// Detector reports pairs at or above a threshold with display previews.
type Detector struct {
	previewLength int
}

// New creates a Detector with the given preview budget; non-positive uses DefaultPreviewLength.
func New(previewLength int) *Detector {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}

	return &Detector{previewLength: previewLength}
}

// PreviewLength returns the preview budget in characters.
func (d *Detector) PreviewLength() int {
	return d.previewLength
}

// ValidateThreshold returns InvalidThresholdError unless 0 <= threshold <= 1.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return detecterrors.NewInvalidThresholdError(threshold)
	}

	return nil
}

// Detect returns every pair (i, j), i < j, with m[i][j] >= threshold, sorted by similarity
// descending and then by (Index1, Index2) ascending. texts must line up with the matrix rows.
// The result is empty (not nil) when nothing qualifies.
func (d *Detector) Detect(m similarity.Matrix, texts []string, threshold float64) ([]Pair, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	n := len(m)
	if len(texts) != n {
		return nil, detecterrors.NewDimensionMismatchError("%d texts for a %dx%d matrix", len(texts), n, n)
	}

	for i, row := range m {
		if len(row) != n {
			return nil, detecterrors.NewDimensionMismatchError("matrix row %d has %d columns, want %d", i, len(row), n)
		}
	}

	previews := make([]string, n)
	previewOf := func(i int) string {
		if previews[i] == "" {
			previews[i] = Preview(texts[i], d.previewLength)
		}

		return previews[i]
	}

	pairs := []Pair{}

	for i := range n {
		for j := i + 1; j < n; j++ {
			if m[i][j] >= threshold {
				pairs = append(pairs, Pair{
					Index1:     i,
					Index2:     j,
					Similarity: m[i][j],
					Preview1:   previewOf(i),
					Preview2:   previewOf(j),
				})
			}
		}
	}

	SortPairs(pairs)

	return pairs, nil
}

// SortPairs orders pairs by similarity descending, ties by (Index1, Index2) ascending.
func SortPairs(pairs []Pair) {
	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}

		if c := cmp.Compare(a.Index1, b.Index1); c != 0 {
			return c
		}

		return cmp.Compare(a.Index2, b.Index2)
	})
}

// Preview shortens text for display. Text of at most budget characters (after trimming) is
// returned as is; longer text is cut to budget, trimmed, moved back to the last space when that
// space is near the end, and suffixed with "...". Lengths count runes.
func Preview(text string, budget int) string {
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}

	truncated := []rune(strings.TrimRightFunc(string(runes[:budget]), unicode.IsSpace))

	if lastSpace := lastIndexRune(truncated, ' '); float64(lastSpace) > float64(budget)*wordBoundaryRatio {
		truncated = truncated[:lastSpace]
	}

	return string(truncated) + ellipsis
}

func lastIndexRune(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}

	return -1
}
