package umap

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/hupe1980/trackgraph/distance"
)

// ErrNoRows is returned when the input matrix has no rows.
var ErrNoRows = errors.New("cannot embed an empty matrix")

// Options configures the 2-D embedding.
type Options struct {
	// Neighbors is the local neighborhood size; larger values favor global
	// structure over local detail. Clamped to n-1.
	Neighbors int

	// MinDist is the minimum spacing between embedded points.
	MinDist float64

	// Epochs is the number of optimization passes. 0 picks 500 for small
	// inputs and 200 otherwise, matching common UMAP defaults.
	Epochs int

	// Seed fixes layout initialization and edge sampling. Two runs with
	// the same input and seed produce identical embeddings.
	Seed int64

	// NegativeSamples per positive edge during optimization.
	NegativeSamples int

	// LearningRate is the initial SGD step size, decayed linearly.
	LearningRate float64
}

// DefaultOptions mirror the reference defaults.
var DefaultOptions = Options{
	Neighbors:       15,
	MinDist:         0.1,
	Seed:            42,
	NegativeSamples: 5,
	LearningRate:    1.0,
}

func (o *Options) withDefaults(n int) Options {
	out := *o
	if out.Neighbors <= 0 {
		out.Neighbors = DefaultOptions.Neighbors
	}
	if out.Neighbors > n-1 {
		out.Neighbors = n - 1
	}
	if out.MinDist <= 0 {
		out.MinDist = DefaultOptions.MinDist
	}
	if out.Epochs <= 0 {
		if n < 10000 {
			out.Epochs = 500
		} else {
			out.Epochs = 200
		}
	}
	if out.NegativeSamples <= 0 {
		out.NegativeSamples = DefaultOptions.NegativeSamples
	}
	if out.LearningRate <= 0 {
		out.LearningRate = DefaultOptions.LearningRate
	}
	return out
}

// Embed projects the flattened row-major matrix (n x dim) into 2-D,
// preserving local neighborhood structure: exact Euclidean kNN, smooth-kNN
// calibration, fuzzy union symmetrization, then SGD layout with negative
// sampling. Only relative positions of the output are meaningful.
//
// The computation is single-threaded so a fixed seed yields a byte-identical
// embedding.
func Embed(ctx context.Context, matrix []float32, dim int, opts Options) ([]float32, error) {
	if dim <= 0 || len(matrix)%dim != 0 {
		return nil, errors.New("matrix length is not a multiple of dimension")
	}
	n := len(matrix) / dim
	if n == 0 {
		return nil, ErrNoRows
	}
	if n == 1 {
		return []float32{0, 0}, nil
	}

	o := opts.withDefaults(n)

	knn := nearestNeighbors(matrix, dim, n, o.Neighbors)
	edges := fuzzyGraph(knn, n)
	a, b := fitCurve(o.MinDist)

	rng := rand.New(rand.NewSource(o.Seed))
	emb := make([]float64, n*2)
	for i := range emb {
		emb[i] = rng.Float64()*20 - 10
	}

	if err := optimize(ctx, emb, edges, n, o, a, b, rng); err != nil {
		return nil, err
	}

	out := make([]float32, n*2)
	for i, v := range emb {
		out[i] = float32(v)
	}
	return out, nil
}

type neighbor struct {
	idx  int
	dist float64
}

// nearestNeighbors computes the exact k nearest rows per row under
// Euclidean distance. O(n^2 dim), acceptable at catalog scale since the
// embedding runs once per batch.
func nearestNeighbors(matrix []float32, dim, n, k int) [][]neighbor {
	knn := make([][]neighbor, n)
	cand := make([]neighbor, 0, n-1)

	for i := 0; i < n; i++ {
		row := matrix[i*dim : (i+1)*dim]
		cand = cand[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d := float64(distance.L2(row, matrix[j*dim:(j+1)*dim]))
			cand = append(cand, neighbor{idx: j, dist: d})
		}
		sort.Slice(cand, func(x, y int) bool {
			if cand[x].dist != cand[y].dist {
				return cand[x].dist < cand[y].dist
			}
			return cand[x].idx < cand[y].idx
		})
		knn[i] = append([]neighbor(nil), cand[:k]...)
	}
	return knn
}

type edge struct {
	from, to int
	weight   float64
}

// fuzzyGraph converts the kNN sets into a symmetric weighted graph.
// Per-row weights come from the smooth-kNN kernel exp(-(d-rho)/sigma);
// directed weights p, q merge by fuzzy union p + q - p*q.
func fuzzyGraph(knn [][]neighbor, n int) []edge {
	directed := make([]map[int]float64, n)
	for i, nbrs := range knn {
		rho, sigma := smoothKNN(nbrs)
		w := make(map[int]float64, len(nbrs))
		for _, nb := range nbrs {
			d := nb.dist - rho
			if d < 0 {
				d = 0
			}
			w[nb.idx] = math.Exp(-d / sigma)
		}
		directed[i] = w
	}

	var edges []edge
	for i := 0; i < n; i++ {
		for j, p := range directed[i] {
			if j < i {
				continue // handled from the smaller endpoint
			}
			q := directed[j][i]
			w := p + q - p*q
			if w > 0 {
				edges = append(edges, edge{from: i, to: j, weight: w})
			}
		}
	}
	// Map iteration order is random; fix it for determinism.
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].from != edges[y].from {
			return edges[x].from < edges[y].from
		}
		return edges[x].to < edges[y].to
	})
	return edges
}

// smoothKNN calibrates the per-row kernel: rho is the distance to the
// nearest neighbor, sigma is binary-searched so the effective neighbor
// count equals log2(k).
func smoothKNN(nbrs []neighbor) (rho, sigma float64) {
	if len(nbrs) == 0 {
		return 0, 1
	}
	rho = nbrs[0].dist
	target := math.Log2(float64(len(nbrs)))
	if target <= 0 {
		return rho, 1
	}

	lo, hi := 0.0, math.Inf(1)
	sigma = 1.0
	for iter := 0; iter < 64; iter++ {
		var sum float64
		for _, nb := range nbrs {
			d := nb.dist - rho
			if d <= 0 {
				sum++
				continue
			}
			sum += math.Exp(-d / sigma)
		}
		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			hi = sigma
			sigma = (lo + hi) / 2
		} else {
			lo = sigma
			if math.IsInf(hi, 1) {
				sigma *= 2
			} else {
				sigma = (lo + hi) / 2
			}
		}
	}
	if sigma <= 0 {
		sigma = 1e-3
	}
	return rho, sigma
}

// fitCurve least-squares fits the differentiable curve 1/(1+a*d^(2b)) to
// the target membership function implied by minDist. Gradient descent on
// (log a, log b) keeps both parameters positive.
func fitCurve(minDist float64) (a, b float64) {
	const samples = 300
	const span = 3.0

	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := span * float64(i+1) / samples
		xs[i] = x
		if x <= minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist))
		}
	}

	logA, logB := math.Log(1.5), math.Log(0.9)
	const lr = 0.01
	for iter := 0; iter < 500; iter++ {
		av, bv := math.Exp(logA), math.Exp(logB)
		var gradA, gradB float64
		for i := range xs {
			x, y := xs[i], ys[i]
			p := math.Pow(x, 2*bv)
			f := 1 / (1 + av*p)
			diff := f - y
			// d f / d a = -p * f^2 ; d f / d b = -2a ln(x) p f^2
			gradA += 2 * diff * (-p * f * f) * av
			gradB += 2 * diff * (-2 * av * math.Log(x) * p * f * f) * bv
		}
		logA -= lr * gradA / samples
		logB -= lr * gradB / samples
	}
	return math.Exp(logA), math.Exp(logB)
}

const gradClip = 4.0

func clip(v float64) float64 {
	if v > gradClip {
		return gradClip
	}
	if v < -gradClip {
		return -gradClip
	}
	return v
}

// optimize runs the attractive/repulsive SGD layout. Edges are sampled on
// the usual epochs-per-sample schedule so heavier edges move points more
// often.
func optimize(ctx context.Context, emb []float64, edges []edge, n int, o Options, a, b float64, rng *rand.Rand) error {
	if len(edges) == 0 {
		return nil
	}

	maxW := edges[0].weight
	for _, e := range edges[1:] {
		if e.weight > maxW {
			maxW = e.weight
		}
	}

	epochsPerSample := make([]float64, len(edges))
	nextEpoch := make([]float64, len(edges))
	for i, e := range edges {
		epochsPerSample[i] = maxW / e.weight
		nextEpoch[i] = epochsPerSample[i]
	}

	for epoch := 1; epoch <= o.Epochs; epoch++ {
		if epoch%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		alpha := o.LearningRate * (1 - float64(epoch)/float64(o.Epochs))
		if alpha <= 0 {
			break
		}

		for ei := range edges {
			if nextEpoch[ei] > float64(epoch) {
				continue
			}
			nextEpoch[ei] += epochsPerSample[ei]

			i, j := edges[ei].from, edges[ei].to
			attract(emb, i, j, a, b, alpha)
			for s := 0; s < o.NegativeSamples; s++ {
				k := rng.Intn(n)
				if k == i || k == j {
					continue
				}
				repulse(emb, i, k, a, b, alpha)
			}
		}
	}
	return nil
}

func attract(emb []float64, i, j int, a, b, alpha float64) {
	dx := emb[i*2] - emb[j*2]
	dy := emb[i*2+1] - emb[j*2+1]
	d2 := dx*dx + dy*dy
	if d2 == 0 {
		return
	}
	coeff := (-2 * a * b * math.Pow(d2, b-1)) / (1 + a*math.Pow(d2, b))
	gx := clip(coeff * dx)
	gy := clip(coeff * dy)
	emb[i*2] += alpha * gx
	emb[i*2+1] += alpha * gy
	emb[j*2] -= alpha * gx
	emb[j*2+1] -= alpha * gy
}

func repulse(emb []float64, i, k int, a, b, alpha float64) {
	dx := emb[i*2] - emb[k*2]
	dy := emb[i*2+1] - emb[k*2+1]
	d2 := dx*dx + dy*dy
	coeff := (2 * b) / ((0.001 + d2) * (1 + a*math.Pow(d2, b)))
	gx := clip(coeff * dx)
	gy := clip(coeff * dy)
	emb[i*2] += alpha * gx
	emb[i*2+1] += alpha * gy
}
