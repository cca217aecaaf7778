package simgraph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trackgraph/model"
	"github.com/hupe1980/trackgraph/testutil"
)

func idList(n int) []model.TrackID {
	ids := make([]model.TrackID, n)
	for i := range ids {
		ids[i] = model.TrackID(fmt.Sprintf("t%d", i))
	}
	return ids
}

func TestBuild_TwoGroups(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(42)
	// Two well-separated groups of 3 in opposite orthants; cosine within a
	// group is near 1, across groups near -1.
	matrix := rng.BlobMatrix([][]float32{
		{1, 1, 1, 1},
		{-1, -1, 1, -1},
	}, 3, 0.05)
	ids := idList(6)

	edges, err := Build(ctx, matrix, 4, ids, Options{TopN: 5, Threshold: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	group := func(id model.TrackID) int {
		var i int
		fmt.Sscanf(string(id), "t%d", &i)
		return i / 3
	}
	for _, e := range edges {
		assert.NotEqual(t, e.Source, e.Target)
		assert.Equal(t, group(e.Source), group(e.Target),
			"edge %v crosses groups above threshold", e)
		assert.Greater(t, float64(e.Similarity), 0.5)
		assert.LessOrEqual(t, e.Similarity, float32(1))
	}

	// Each track should link to both peers in its group.
	outgoing := map[model.TrackID]int{}
	for _, e := range edges {
		outgoing[e.Source]++
	}
	for _, id := range ids {
		assert.Equal(t, 2, outgoing[id])
	}
}

func TestBuild_TopNCap(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)
	// One tight cluster: everything is similar to everything.
	matrix := rng.BlobMatrix([][]float32{{1, 1, 1, 1}}, 20, 0.01)
	ids := idList(20)

	edges, err := Build(ctx, matrix, 4, ids, Options{TopN: 3, Threshold: 0.5})
	require.NoError(t, err)

	outgoing := map[model.TrackID]int{}
	seen := map[string]bool{}
	for _, e := range edges {
		outgoing[e.Source]++
		key := string(e.Source) + "->" + string(e.Target)
		assert.False(t, seen[key], "duplicate edge %s", key)
		seen[key] = true
	}
	for _, id := range ids {
		assert.LessOrEqual(t, outgoing[id], 3)
	}
}

func TestBuild_UnreachableThreshold(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	matrix := rng.BlobMatrix([][]float32{{1, 1, 1, 1}}, 10, 0.01)

	edges, err := Build(ctx, matrix, 4, idList(10), Options{TopN: 5, Threshold: 1.1})
	require.NoError(t, err)
	assert.Empty(t, edges, "a threshold above 1 yields zero edges system-wide")
}

func TestBuild_StrictThreshold(t *testing.T) {
	ctx := context.Background()
	// Identical vectors: similarity exactly 1.
	matrix := []float32{1, 0, 1, 0}

	edges, err := Build(ctx, matrix, 2, idList(2), Options{TopN: 5, Threshold: 1.0})
	require.NoError(t, err)
	assert.Empty(t, edges, "similarity equal to the threshold is excluded")

	edges, err = Build(ctx, matrix, 2, idList(2), Options{TopN: 5, Threshold: 0.99})
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestBuild_SimilarityNeverExceedsOne(t *testing.T) {
	ctx := context.Background()
	// Identical unit-axis vectors are the worst case for float32 rounding:
	// norm comes out just below 1, so the raw dot product lands just above.
	matrix := []float32{
		1, 0,
		1, 0,
		0.70710678, 0.70710678,
	}

	edges, err := Build(ctx, matrix, 2, idList(3), Options{TopN: 5, Threshold: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	for _, e := range edges {
		assert.LessOrEqual(t, e.Similarity, float32(1), "edge %s", e)
	}

	// The identical pair reports exactly 1.
	for _, e := range edges {
		if (e.Source == "t0" && e.Target == "t1") || (e.Source == "t1" && e.Target == "t0") {
			assert.Equal(t, float32(1), e.Similarity)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(42)
	matrix := rng.GaussianMatrix(64, 9)
	ids := idList(64)

	// Different block sizes and worker counts must not change the output.
	a, err := Build(ctx, matrix, 9, ids, Options{TopN: 5, Threshold: 0.2, BlockSize: 7, MaxWorkers: 4})
	require.NoError(t, err)
	b, err := Build(ctx, matrix, 9, ids, Options{TopN: 5, Threshold: 0.2, BlockSize: 64, MaxWorkers: 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuild_ZeroVectorRow(t *testing.T) {
	ctx := context.Background()
	matrix := []float32{
		0, 0, 0,
		1, 1, 1,
		1, 1, 0.9,
	}

	edges, err := Build(ctx, matrix, 3, idList(3), Options{TopN: 5, Threshold: 0.5})
	require.NoError(t, err)

	for _, e := range edges {
		assert.NotEqual(t, model.TrackID("t0"), e.Source, "zero vector has no neighbors")
		assert.NotEqual(t, model.TrackID("t0"), e.Target)
	}
	assert.NotEmpty(t, edges)
}

func TestBuild_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := Build(ctx, []float32{1, 2}, 2, idList(1), Options{TopN: 0})
	assert.ErrorIs(t, err, ErrInvalidTopN)

	_, err = Build(ctx, []float32{1, 2}, 2, idList(2), Options{TopN: 5})
	assert.ErrorIs(t, err, ErrIDMismatch)

	edges, err := Build(ctx, nil, 2, nil, Options{TopN: 5})
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestBuild_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng := testutil.NewRNG(1)
	matrix := rng.GaussianMatrix(256, 9)

	_, err := Build(ctx, matrix, 9, idList(256), Options{TopN: 5, Threshold: 0, BlockSize: 8})
	assert.ErrorIs(t, err, context.Canceled)
}
