package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trackgraph/blobstore"
	"github.com/hupe1980/trackgraph/model"
)

func testSet() *Set {
	return &Set{
		Tracks: []model.Track{
			{TrackID: "t1", Danceability: 0.5, EmbeddingX: 1.2, EmbeddingY: -0.4, ClusterID: 0},
			{TrackID: "t2", Danceability: 0.7, EmbeddingX: -2.1, EmbeddingY: 0.9, ClusterID: 1},
		},
		Nodes: []model.Node{
			{TrackID: "t1", Title: "One", Artist: "A", ClusterID: 0, Popularity: 40},
			{TrackID: "t2", Title: "Two", Artist: "B", ClusterID: 1, Popularity: 55},
		},
		Edges: []model.Edge{
			{Source: "t1", Target: "t2", Similarity: 0.83},
		},
		Stats: model.Stats{
			RunID:       "r1",
			TotalTracks: 2,
			Clusters:    2,
			TotalEdges:  1,
		},
	}
}

func TestWriter_WriteAndLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	w := NewWriter(store)
	m, err := w.Write(ctx, "r1", testSet())
	require.NoError(t, err)
	assert.Equal(t, "r1", m.RunID)
	assert.Equal(t, "none", m.Compression)
	assert.Len(t, m.Files, 4)
	assert.Equal(t, "runs/r1/edges.json", m.Files[EdgesFileName])

	r := NewReader(store)
	current, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", current.RunID)

	set, err := r.Load(ctx, current)
	require.NoError(t, err)
	assert.Equal(t, testSet().Tracks, set.Tracks)
	assert.Equal(t, testSet().Edges, set.Edges)
	assert.Equal(t, 2, set.Stats.TotalTracks)
}

func TestWriter_Compression(t *testing.T) {
	for _, comp := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(comp.String(), func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()

			w := NewWriter(store, WithCompression(comp))
			m, err := w.Write(ctx, "r1", testSet())
			require.NoError(t, err)
			assert.Equal(t, comp.String(), m.Compression)
			assert.Equal(t, "runs/r1/edges.json"+comp.suffix(), m.Files[EdgesFileName])

			r := NewReader(store)
			current, err := r.Current(ctx)
			require.NoError(t, err)

			set, err := r.Load(ctx, current)
			require.NoError(t, err)
			assert.Equal(t, testSet().Tracks, set.Tracks)
		})
	}
}

func TestWriter_NewRunReplacesCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	w := NewWriter(store)

	_, err := w.Write(ctx, "r1", testSet())
	require.NoError(t, err)

	second := testSet()
	second.Stats.RunID = "r2"
	_, err = w.Write(ctx, "r2", second)
	require.NoError(t, err)

	r := NewReader(store)
	current, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", current.RunID)

	// The first run's blobs stay readable for rollback.
	names, err := store.List(ctx, "runs/r1/")
	require.NoError(t, err)
	assert.Len(t, names, 5)
}

func TestWriter_FailedWriteDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	boom := errors.New("disk full")
	store.FailPut = func(name string) error {
		if name == "runs/r1/stats.json" {
			return boom
		}
		return nil
	}

	w := NewWriter(store)
	_, err := w.Write(ctx, "r1", testSet())
	require.ErrorIs(t, err, boom)

	// No CURRENT, and the partial run was cleaned up.
	_, err = store.Get(ctx, CurrentFileName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestWriter_FailedCommitPreservesPreviousRun(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	w := NewWriter(store)

	_, err := w.Write(ctx, "r1", testSet())
	require.NoError(t, err)

	boom := errors.New("commit refused")
	store.FailPut = func(name string) error {
		if name == CurrentFileName {
			return boom
		}
		return nil
	}

	_, err = w.Write(ctx, "r2", testSet())
	require.ErrorIs(t, err, boom)

	store.FailPut = nil
	r := NewReader(store)
	current, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", current.RunID)
}

func TestWriter_EmptyRunID(t *testing.T) {
	w := NewWriter(blobstore.NewMemoryStore())
	_, err := w.Write(context.Background(), "", testSet())
	require.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	c, err = ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)

	_, err = ParseCompression("snappy")
	require.Error(t, err)
}
