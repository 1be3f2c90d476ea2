// Package similarity builds the pairwise cosine similarity matrix for a set of embeddings.
package similarity

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/pkg/vecmath"
)

// parallelCutoff is the row count from which rows are computed concurrently.
const parallelCutoff = 64

// Matrix is a square, symmetric similarity matrix with a diagonal of exactly 1.0.
type Matrix [][]float64

// Size returns the number of rows.
func (m Matrix) Size() int {
	return len(m)
}

// Stats summarizes the strict upper triangle of a Matrix.
type Stats struct {
	TotalPairs int     `json:"total_pairs"`
	Mean       float64 `json:"mean_similarity"`
	Max        float64 `json:"max_similarity"`
	Min        float64 `json:"min_similarity"`
	StdDev     float64 `json:"std_similarity"`
}

// Build returns the N x N cosine similarity matrix of vectors. Each off-diagonal entry is computed
// once and mirrored; zero-norm vectors score 0 against everything except themselves.
// All vectors must share one length.
func Build(ctx context.Context, vectors [][]float32) (Matrix, error) {
	n := len(vectors)
	if n == 0 {
		return nil, detecterrors.NewEmptyInputError("cannot build a similarity matrix from zero vectors")
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return nil, detecterrors.NewDimensionMismatchError("vector %d has length %d, vector 0 has %d", i, len(v), dims)
		}
	}

	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = vecmath.Norm(v)
	}

	m := make(Matrix, n)
	cells := make([]float64, n*n)

	for i := range m {
		m[i] = cells[i*n : (i+1)*n : (i+1)*n]
		m[i][i] = 1.0
	}

	// Row i owns cells (i, j) and (j, i) for j > i, so rows never write the same cell.
	fillRow := func(i int) {
		for j := i + 1; j < n; j++ {
			s := vecmath.Cosine(vectors[i], vectors[j], norms[i], norms[j])
			m[i][j] = s
			m[j][i] = s
		}
	}

	if n < parallelCutoff {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			fillRow(i)
		}

		return m, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			fillRow(i)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m, nil
}

// Summarize returns statistics over m[i][j] for i < j. All fields are zero when m has fewer than
// two rows. StdDev is the population standard deviation.
func Summarize(m Matrix) Stats {
	n := len(m)
	if n < 2 {
		return Stats{}
	}

	stats := Stats{
		TotalPairs: n * (n - 1) / 2,
		Max:        math.Inf(-1),
		Min:        math.Inf(1),
	}

	var sum float64

	for i := range n {
		for j := i + 1; j < n; j++ {
			v := m[i][j]
			sum += v
			stats.Max = math.Max(stats.Max, v)
			stats.Min = math.Min(stats.Min, v)
		}
	}

	stats.Mean = sum / float64(stats.TotalPairs)

	var sq float64

	for i := range n {
		for j := i + 1; j < n; j++ {
			d := m[i][j] - stats.Mean
			sq += d * d
		}
	}

	stats.StdDev = math.Sqrt(sq / float64(stats.TotalPairs))

	return stats
}

// TotalComparisons returns n(n-1)/2, the number of distinct pairs among n texts.
func TotalComparisons(n int) int {
	if n < 2 {
		return 0
	}

	return n * (n - 1) / 2
}
