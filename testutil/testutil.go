package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/trackgraph/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// GaussianMatrix returns a flattened num x dim matrix with values from a
// standard normal distribution.
func (r *RNG) GaussianMatrix(num, dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]float32, num*dim)
	for i := range data {
		data[i] = float32(r.rand.NormFloat64())
	}
	return data
}

// BlobMatrix returns a flattened matrix of numPerBlob points per center,
// each point jittered by a Gaussian with the given spread. Points of blob b
// occupy rows [b*numPerBlob, (b+1)*numPerBlob).
func (r *RNG) BlobMatrix(centers [][]float32, numPerBlob int, spread float64) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(centers) == 0 {
		return nil
	}
	dim := len(centers[0])
	data := make([]float32, 0, len(centers)*numPerBlob*dim)
	for _, center := range centers {
		for i := 0; i < numPerBlob; i++ {
			for _, c := range center {
				data = append(data, c+float32(r.rand.NormFloat64()*spread))
			}
		}
	}
	return data
}

// Tracks builds complete raw track records whose nine feature values all sit
// near the given base value, jittered uniformly by +/- jitter. IDs are
// prefix-0 .. prefix-(num-1).
func (r *RNG) Tracks(prefix string, num int, base, jitter float32) []model.RawTrack {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.RawTrack, num)
	for i := range out {
		vals := make([]float32, model.NumFeatures)
		for j := range vals {
			vals[j] = base + (r.rand.Float32()*2-1)*jitter
		}
		out[i] = model.RawTrack{
			TrackID:          model.TrackID(fmt.Sprintf("%s-%d", prefix, i)),
			Acousticness:     &vals[0],
			Danceability:     &vals[1],
			Energy:           &vals[2],
			Instrumentalness: &vals[3],
			Liveness:         &vals[4],
			Loudness:         &vals[5],
			Speechiness:      &vals[6],
			Tempo:            &vals[7],
			Valence:          &vals[8],
			Title:            fmt.Sprintf("Track %s-%d", prefix, i),
			Artist:           fmt.Sprintf("Artist %s", prefix),
			Popularity:       r.rand.Intn(100),
		}
	}
	return out
}

// TwoGroupTracks returns 2*numPerGroup complete records forming two
// well-separated groups: group "a" near 0.1 and group "b" near 0.9 in every
// feature. The canonical fixture for cluster and similarity assertions.
func (r *RNG) TwoGroupTracks(numPerGroup int) []model.RawTrack {
	a := r.Tracks("a", numPerGroup, 0.1, 0.02)
	b := r.Tracks("b", numPerGroup, 0.9, 0.02)
	return append(a, b...)
}
