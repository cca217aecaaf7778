package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trackgraph/model"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs_EdgeRoundTrip(t *testing.T) {
	edge := model.Edge{Source: "a", Target: "b", Similarity: 0.87}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(edge)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"source":"a"`)

			var got model.Edge
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, edge, got)
		})
	}
}

func TestCodecs_MissingFeatureStaysNil(t *testing.T) {
	data := []byte(`{"track_id":"x","energy":0.5}`)

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			var raw model.RawTrack
			require.NoError(t, c.Unmarshal(data, &raw))
			require.NotNil(t, raw.Energy)
			assert.InDelta(t, 0.5, *raw.Energy, 1e-6)
			assert.Nil(t, raw.Tempo)
			_, complete := raw.Features()
			assert.False(t, complete)
		})
	}
}

func TestMustMarshal_DefaultCodec(t *testing.T) {
	data := MustMarshal(nil, map[string]int{"a": 1})
	assert.JSONEq(t, `{"a":1}`, string(data))
}
