package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/trackgraph/distance"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrTooFewPoints is returned when k exceeds the number of points.
	ErrTooFewPoints = errors.New("k exceeds number of points")
)

// Options controls training behavior.
type Options struct {
	// MaxIterations caps the assignment/update loop per restart.
	MaxIterations int

	// Restarts is the number of independent runs; the best result by
	// within-cluster variance wins. Ties go to the lowest restart index,
	// which keeps the outcome independent of scheduling.
	Restarts int

	// Seed fixes the centroid initialization. Restart r derives its own
	// source from Seed+r.
	Seed int64

	// Metric selects the distance used for assignment.
	Metric distance.Metric

	// Parallel runs restarts concurrently. Off by default; the result is
	// identical either way.
	Parallel bool
}

// DefaultOptions mirror the reference defaults (n_init=10).
var DefaultOptions = Options{
	MaxIterations: 300,
	Restarts:      10,
	Seed:          42,
	Metric:        distance.MetricL2,
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxIterations <= 0 {
		out.MaxIterations = DefaultOptions.MaxIterations
	}
	if out.Restarts <= 0 {
		out.Restarts = DefaultOptions.Restarts
	}
	return out
}

// Result holds a trained partition.
type Result struct {
	// Labels assigns each row a cluster in [0, k).
	Labels []int

	// Centroids are the flattened cluster means (k * dim).
	Centroids []float32

	// Inertia is the total squared L2 distance of rows to their centroid.
	Inertia float64
}

// Train partitions the flattened row-major matrix (n x dim) into k clusters
// using Lloyd's algorithm with seeded restarts.
//
// Every label in [0, k) is used whenever k does not exceed the number of
// distinct rows; with fewer distinct rows than k, duplicate rows can pin
// several centroids to the same point and labels may collapse.
func Train(ctx context.Context, matrix []float32, dim, k int, opts Options) (*Result, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if dim <= 0 || len(matrix)%dim != 0 {
		return nil, errors.New("matrix length is not a multiple of dimension")
	}
	n := len(matrix) / dim
	if n < k {
		return nil, ErrTooFewPoints
	}

	o := opts.withDefaults()
	distFunc, err := distance.Provider(o.Metric)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, o.Restarts)

	if o.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for r := 0; r < o.Restarts; r++ {
			g.Go(func() error {
				res, err := lloyd(gctx, matrix, dim, n, k, o, distFunc, o.Seed+int64(r))
				if err != nil {
					return err
				}
				results[r] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for r := 0; r < o.Restarts; r++ {
			res, err := lloyd(ctx, matrix, dim, n, k, o, distFunc, o.Seed+int64(r))
			if err != nil {
				return nil, err
			}
			results[r] = res
		}
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

func lloyd(ctx context.Context, matrix []float32, dim, n, k int, o Options, distFunc distance.Func, seed int64) (*Result, error) {
	rng := rand.New(rand.NewSource(seed))

	centroids := make([]float32, k*dim)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], matrix[perm[i]*dim:(perm[i]+1)*dim])
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	for iter := 0; iter < o.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false
		for i := 0; i < n; i++ {
			row := matrix[i*dim : (i+1)*dim]
			best := nearest(row, centroids, dim, k, distFunc)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := labels[i]
			row := matrix[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += float64(row[d])
			}
			counts[c]++
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				continue
			}
			inv := 1 / float64(counts[j])
			for d := 0; d < dim; d++ {
				centroids[j*dim+d] = float32(sums[j*dim+d] * inv)
			}
		}

		repairEmpty(matrix, centroids, labels, counts, dim, n, k)
	}

	// The loop can exit right after an assignment pass, so enforce the
	// no-empty-cluster invariant once more before scoring.
	for i := range counts {
		counts[i] = 0
	}
	for _, c := range labels {
		counts[c]++
	}
	repairEmpty(matrix, centroids, labels, counts, dim, n, k)

	var inertia float64
	for i := 0; i < n; i++ {
		row := matrix[i*dim : (i+1)*dim]
		c := labels[i]
		inertia += float64(distance.SquaredL2(row, centroids[c*dim:(c+1)*dim]))
	}

	return &Result{Labels: labels, Centroids: centroids, Inertia: inertia}, nil
}

// repairEmpty reseeds each empty cluster with the point farthest from its
// current centroid, taken from a cluster that can spare one. Scan order is
// fixed, so the repair is deterministic.
func repairEmpty(matrix, centroids []float32, labels, counts []int, dim, n, k int) {
	for j := 0; j < k; j++ {
		if counts[j] > 0 {
			continue
		}

		farthest := -1
		var maxDist float32 = -1
		for i := 0; i < n; i++ {
			c := labels[i]
			if counts[c] <= 1 {
				continue
			}
			row := matrix[i*dim : (i+1)*dim]
			d := distance.SquaredL2(row, centroids[c*dim:(c+1)*dim])
			if d > maxDist {
				maxDist = d
				farthest = i
			}
		}
		if farthest < 0 {
			return // fewer distinct points than clusters; documented degenerate case
		}

		counts[labels[farthest]]--
		labels[farthest] = j
		counts[j] = 1
		copy(centroids[j*dim:(j+1)*dim], matrix[farthest*dim:(farthest+1)*dim])
	}
}

// Assign finds the closest centroid for a single vector.
func Assign(vec, centroids []float32, dim int, metric distance.Metric) (int, error) {
	if dim <= 0 || len(centroids)%dim != 0 {
		return -1, errors.New("centroids length is not a multiple of dimension")
	}
	distFunc, err := distance.Provider(metric)
	if err != nil {
		return -1, err
	}
	return nearest(vec, centroids, dim, len(centroids)/dim, distFunc), nil
}

func nearest(row, centroids []float32, dim, k int, distFunc distance.Func) int {
	best := -1
	minDist := float32(math.MaxFloat32)
	for j := 0; j < k; j++ {
		d := distFunc(row, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}
	return best
}
