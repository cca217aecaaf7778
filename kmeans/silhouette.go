package kmeans

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/trackgraph/distance"
	"github.com/hupe1980/trackgraph/model"
)

// ErrInvalidRange is returned for an empty or inverted cluster-count sweep.
var ErrInvalidRange = errors.New("invalid k range")

// Silhouette computes the mean silhouette coefficient of a partition using
// Euclidean distance: for each row, (b-a)/max(a,b) where a is the mean
// distance to its own cluster and b the lowest mean distance to any other.
// Rows in singleton clusters score 0. The result lies in [-1, 1]; higher
// means tighter, better separated clusters.
func Silhouette(matrix []float32, dim int, labels []int, k int) (float64, error) {
	if dim <= 0 || len(matrix)%dim != 0 {
		return 0, errors.New("matrix length is not a multiple of dimension")
	}
	n := len(matrix) / dim
	if len(labels) != n {
		return 0, fmt.Errorf("labels length %d does not match %d rows", len(labels), n)
	}
	if k < 2 {
		return 0, fmt.Errorf("%w: silhouette needs at least 2 clusters", ErrInvalidK)
	}

	counts := make([]int, k)
	for _, c := range labels {
		if c < 0 || c >= k {
			return 0, fmt.Errorf("label %d outside [0,%d)", c, k)
		}
		counts[c]++
	}

	var total float64
	sums := make([]float64, k)

	for i := 0; i < n; i++ {
		if counts[labels[i]] <= 1 {
			continue // singleton contributes 0
		}

		row := matrix[i*dim : (i+1)*dim]
		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			sums[labels[j]] += float64(distance.L2(row, matrix[j*dim:(j+1)*dim]))
		}

		a := sums[labels[i]] / float64(counts[labels[i]]-1)
		b := -1.0
		for c := 0; c < k; c++ {
			if c == labels[i] || counts[c] == 0 {
				continue
			}
			mean := sums[c] / float64(counts[c])
			if b < 0 || mean < b {
				b = mean
			}
		}
		if b < 0 {
			continue // only one non-empty cluster
		}

		maxAB := a
		if b > maxAB {
			maxAB = b
		}
		if maxAB > 0 {
			total += (b - a) / maxAB
		}
	}

	return total / float64(n), nil
}

// SweepResult reports the outcome of SelectK. Scores carry one
// model.KScore per candidate k, in sweep order.
type SweepResult struct {
	BestK     int
	BestScore float64
	Scores    []model.KScore
}

// SelectK trains a partition for every k in [kMin, kMax) and returns the k
// with the highest mean silhouette; ties break toward the smallest k. The
// full score table is kept for run statistics.
//
// An empty or inverted range, kMin below 2, or a candidate k exceeding the
// row count is a configuration error, never a silent fallback.
func SelectK(ctx context.Context, matrix []float32, dim, kMin, kMax int, opts Options) (*SweepResult, error) {
	if kMin < 2 || kMax <= kMin {
		return nil, fmt.Errorf("%w: [%d,%d)", ErrInvalidRange, kMin, kMax)
	}
	n := len(matrix) / dim
	if kMax-1 > n {
		return nil, fmt.Errorf("%w: k=%d with %d tracks", ErrTooFewPoints, kMax-1, n)
	}

	sweep := &SweepResult{BestK: -1}
	for k := kMin; k < kMax; k++ {
		res, err := Train(ctx, matrix, dim, k, opts)
		if err != nil {
			return nil, fmt.Errorf("k=%d: %w", k, err)
		}
		score, err := Silhouette(matrix, dim, res.Labels, k)
		if err != nil {
			return nil, fmt.Errorf("k=%d: %w", k, err)
		}
		sweep.Scores = append(sweep.Scores, model.KScore{K: k, Score: score})
		if sweep.BestK < 0 || score > sweep.BestScore {
			sweep.BestK = k
			sweep.BestScore = score
		}
	}
	return sweep, nil
}
