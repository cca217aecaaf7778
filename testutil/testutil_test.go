package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	va := make([]float32, 16)
	vb := make([]float32, 16)
	a.FillUniform(va)
	b.FillUniform(vb)

	assert.Equal(t, va, vb)
}

func TestRNG_Reset(t *testing.T) {
	r := NewRNG(7)
	first := r.Float32()
	r.Float32()
	r.Reset()
	assert.Equal(t, first, r.Float32())
	assert.Equal(t, int64(7), r.Seed())
}

func TestTwoGroupTracks(t *testing.T) {
	r := NewRNG(42)
	tracks := r.TwoGroupTracks(3)
	require.Len(t, tracks, 6)

	for _, tr := range tracks[:3] {
		vec, ok := tr.Features()
		require.True(t, ok)
		for _, v := range vec {
			assert.InDelta(t, 0.1, v, 0.03)
		}
	}
	for _, tr := range tracks[3:] {
		vec, ok := tr.Features()
		require.True(t, ok)
		for _, v := range vec {
			assert.InDelta(t, 0.9, v, 0.03)
		}
	}
}

func TestBlobMatrix(t *testing.T) {
	r := NewRNG(1)
	m := r.BlobMatrix([][]float32{{0, 0}, {10, 10}}, 5, 0.1)
	require.Len(t, m, 20)
	assert.InDelta(t, 0, m[0], 1)
	assert.InDelta(t, 10, m[10], 1)
}
