package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trackgraph/model"
)

func f32(v float32) *float32 { return &v }

func completeTrack(id model.TrackID, v float32) model.RawTrack {
	return model.RawTrack{
		TrackID:          id,
		Acousticness:     f32(v),
		Danceability:     f32(v),
		Energy:           f32(v),
		Instrumentalness: f32(v),
		Liveness:         f32(v),
		Loudness:         f32(v),
		Speechiness:      f32(v),
		Tempo:            f32(v),
		Valence:          f32(v),
	}
}

func TestLoad(t *testing.T) {
	records := []model.RawTrack{
		completeTrack("a", 0.1),
		completeTrack("b", 0.5),
		completeTrack("c", 0.9),
	}

	ds, err := Load(records)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 0, ds.Dropped)
	assert.Equal(t, []model.TrackID{"a", "b", "c"}, ds.IDs)
	assert.Len(t, ds.Matrix, 3*model.NumFeatures)
	assert.InDelta(t, 0.5, ds.Row(1)[0], 1e-6)
}

func TestLoad_DropsMissingTempo(t *testing.T) {
	broken := completeTrack("b", 0.5)
	broken.Tempo = nil

	ds, err := Load([]model.RawTrack{
		completeTrack("a", 0.1),
		broken,
		completeTrack("c", 0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 1, ds.Dropped)
	assert.Equal(t, []model.TrackID{"a", "c"}, ds.IDs)
}

func TestLoad_DropsMissingID(t *testing.T) {
	anon := completeTrack("", 0.5)

	ds, err := Load([]model.RawTrack{completeTrack("a", 0.1), anon})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, ds.Dropped)
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	broken := completeTrack("a", 0.5)
	broken.Energy = nil
	_, err = Load([]model.RawTrack{broken})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadBytes(t *testing.T) {
	data := []byte(`[
		{"track_id":"t1","acousticness":0.1,"danceability":0.2,"energy":0.3,
		 "instrumentalness":0.4,"liveness":0.5,"loudness":-5.0,"speechiness":0.06,
		 "tempo":120.0,"valence":0.7,"title":"One","artist":"A","popularity":42},
		{"track_id":"t2","acousticness":0.2,"danceability":0.3,"energy":0.4,
		 "instrumentalness":0.5,"liveness":0.6,"loudness":-7.5,"speechiness":0.08,
		 "valence":0.9}
	]`)

	ds, err := LoadBytes(data, nil)
	require.NoError(t, err)
	// t2 has no tempo and is dropped.
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, ds.Dropped)
	assert.Equal(t, model.TrackID("t1"), ds.IDs[0])
	assert.Equal(t, "One", ds.Tracks[0].Title)
	assert.InDelta(t, 120.0, ds.Row(0)[7], 1e-6) // tempo column
}

func TestLoadBytes_Malformed(t *testing.T) {
	_, err := LoadBytes([]byte(`{"not":"an array"`), nil)
	assert.Error(t, err)
}
