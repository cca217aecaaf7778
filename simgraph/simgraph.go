package simgraph

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/trackgraph/distance"
	"github.com/hupe1980/trackgraph/model"
)

var (
	// ErrInvalidTopN is returned for a non-positive neighbor cap.
	ErrInvalidTopN = errors.New("top-n must be positive")

	// ErrIDMismatch is returned when the id list does not match the matrix.
	ErrIDMismatch = errors.New("id count does not match row count")
)

// Options configures graph construction.
type Options struct {
	// TopN caps the outgoing edges per source track.
	TopN int

	// Threshold drops candidates at or below this similarity after top-N
	// truncation. An unreachable threshold (e.g. above 1) simply yields an
	// empty graph.
	Threshold float64

	// BlockSize is the number of source rows processed per unit of work.
	// The full n x n similarity matrix is never materialized; peak memory
	// is O(BlockSize * TopN) candidate state plus the input rows.
	BlockSize int

	// MaxWorkers bounds concurrent blocks. Defaults to GOMAXPROCS.
	MaxWorkers int

	// Logger receives rate-limited progress lines. Nil disables them.
	Logger *slog.Logger
}

// DefaultOptions mirror the reference defaults.
var DefaultOptions = Options{
	TopN:      15,
	Threshold: 0.7,
	BlockSize: 512,
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.BlockSize <= 0 {
		out.BlockSize = DefaultOptions.BlockSize
	}
	if out.MaxWorkers <= 0 {
		out.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	return out
}

// Build computes the sparse nearest-neighbor graph over the flattened
// row-major matrix (n x dim): cosine similarity between every pair, self
// similarity forced to zero, per-source top-N truncation, then a strict
// > threshold filter. ids[i] names row i.
//
// Row blocks run in parallel but per-source neighbor lists are concatenated
// in row order, so the edge set is deterministic.
func Build(ctx context.Context, matrix []float32, dim int, ids []model.TrackID, opts Options) ([]model.Edge, error) {
	if opts.TopN <= 0 {
		return nil, ErrInvalidTopN
	}
	if dim <= 0 || len(matrix)%dim != 0 {
		return nil, errors.New("matrix length is not a multiple of dimension")
	}
	n := len(matrix) / dim
	if len(ids) != n {
		return nil, fmt.Errorf("%w: %d ids, %d rows", ErrIDMismatch, len(ids), n)
	}
	if n == 0 {
		return nil, nil
	}

	o := opts.withDefaults()

	// Unit-normalize once so each pair costs a single dot product.
	// Zero-norm rows stay zero vectors: similarity 0 with everything.
	units := make([]float32, len(matrix))
	copy(units, matrix)
	for i := 0; i < n; i++ {
		distance.NormalizeL2InPlace(units[i*dim : (i+1)*dim])
	}

	perSource := make([][]model.Edge, n)
	var processed atomic.Int64
	progress := rate.NewLimiter(1, 1) // at most one progress line per second

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.MaxWorkers)

	for lo := 0; lo < n; lo += o.BlockSize {
		hi := min(lo+o.BlockSize, n)
		g.Go(func() error {
			sel := newTopSelector(o.TopN)
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				row := units[i*dim : (i+1)*dim]
				sel.reset()
				for j := 0; j < n; j++ {
					if j == i {
						continue
					}
					sim := clamp(distance.Dot(row, units[j*dim:(j+1)*dim]))
					if float64(sim) <= o.Threshold {
						continue
					}
					sel.offer(j, sim)
				}
				perSource[i] = sel.edges(ids[i], ids)
			}

			done := processed.Add(int64(hi - lo))
			if o.Logger != nil && progress.Allow() {
				o.Logger.Info("similarity progress",
					"processed", done,
					"total", n,
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, es := range perSource {
		total += len(es)
	}
	edges := make([]model.Edge, 0, total)
	for _, es := range perSource {
		edges = append(edges, es...)
	}
	return edges, nil
}

// clamp bounds a cosine similarity to [-1, 1]. Float32 normalization can
// overshoot slightly (an identical pair multiplies out to just above 1),
// which would leak edges past a threshold of exactly 1.
func clamp(sim float32) float32 {
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// candidate is a neighbor under consideration for a single source row.
type candidate struct {
	idx int
	sim float32
}

// topSelector keeps the best N candidates in a bounded min-heap. Ties on
// similarity prefer the lower row index so output is stable.
type topSelector struct {
	cap   int
	items []candidate
}

func newTopSelector(n int) *topSelector {
	return &topSelector{cap: n, items: make([]candidate, 0, n)}
}

func (s *topSelector) reset() { s.items = s.items[:0] }

func (s *topSelector) Len() int { return len(s.items) }

func (s *topSelector) Less(i, j int) bool {
	if s.items[i].sim != s.items[j].sim {
		return s.items[i].sim < s.items[j].sim
	}
	return s.items[i].idx > s.items[j].idx
}

func (s *topSelector) Swap(i, j int) { s.items[i], s.items[j] = s.items[j], s.items[i] }

func (s *topSelector) Push(x any) { s.items = append(s.items, x.(candidate)) }

func (s *topSelector) Pop() any {
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return last
}

func (s *topSelector) offer(idx int, sim float32) {
	if len(s.items) < s.cap {
		heap.Push(s, candidate{idx: idx, sim: sim})
		return
	}
	worst := s.items[0]
	if sim > worst.sim || (sim == worst.sim && idx < worst.idx) {
		s.items[0] = candidate{idx: idx, sim: sim}
		heap.Fix(s, 0)
	}
}

// edges drains the selector into edges ordered by descending similarity.
func (s *topSelector) edges(source model.TrackID, ids []model.TrackID) []model.Edge {
	if len(s.items) == 0 {
		return nil
	}
	out := make([]model.Edge, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		c := heap.Pop(s).(candidate)
		out[i] = model.Edge{Source: source, Target: ids[c.idx], Similarity: c.sim}
	}
	return out
}
