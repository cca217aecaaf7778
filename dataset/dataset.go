package dataset

import (
	"errors"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/trackgraph/codec"
	"github.com/hupe1980/trackgraph/model"
)

var (
	// ErrEmpty is returned when no complete records remain after dropping
	// incomplete ones. There is nothing to normalize or cluster.
	ErrEmpty = errors.New("no complete records after dropping incomplete tracks")
)

// Dataset is the tabular form of a loaded track collection: retained raw
// records plus their feature matrix, flattened row-major (n x NumFeatures).
type Dataset struct {
	Tracks  []model.RawTrack
	IDs     []model.TrackID
	Matrix  []float32
	Dropped int
}

// Len returns the number of retained tracks.
func (d *Dataset) Len() int { return len(d.Tracks) }

// Row returns the feature vector of track i as a sub-slice of Matrix.
func (d *Dataset) Row(i int) []float32 {
	return d.Matrix[i*model.NumFeatures : (i+1)*model.NumFeatures]
}

// Load validates raw records and assembles the feature matrix.
//
// Per feature column a roaring bitmap marks the rows where the value is
// present; the intersection of all column bitmaps is the retained row set.
// A record without a track_id can never be keyed and is dropped the same
// way. Retained rows keep their input order.
func Load(records []model.RawTrack) (*Dataset, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	columns := make([]*roaring.Bitmap, model.NumFeatures+1)
	for i := range columns {
		columns[i] = roaring.New()
	}

	for i, rec := range records {
		if rec.TrackID != "" {
			columns[0].Add(uint32(i))
		}
		ptrs := [model.NumFeatures]*float32{
			rec.Acousticness, rec.Danceability, rec.Energy, rec.Instrumentalness,
			rec.Liveness, rec.Loudness, rec.Speechiness, rec.Tempo, rec.Valence,
		}
		for c, p := range ptrs {
			if p != nil {
				columns[c+1].Add(uint32(i))
			}
		}
	}

	retained := roaring.FastAnd(columns...)
	n := int(retained.GetCardinality())
	if n == 0 {
		return nil, ErrEmpty
	}

	ds := &Dataset{
		Tracks:  make([]model.RawTrack, 0, n),
		IDs:     make([]model.TrackID, 0, n),
		Matrix:  make([]float32, 0, n*model.NumFeatures),
		Dropped: len(records) - n,
	}

	it := retained.Iterator()
	for it.HasNext() {
		rec := records[it.Next()]
		vec, ok := rec.Features()
		if !ok {
			// Unreachable: the bitmap intersection already proved presence.
			continue
		}
		ds.Tracks = append(ds.Tracks, rec)
		ds.IDs = append(ds.IDs, rec.TrackID)
		ds.Matrix = append(ds.Matrix, vec[:]...)
	}

	return ds, nil
}

// LoadBytes decodes a JSON array of raw records and loads it.
// If c is nil, codec.Default is used.
func LoadBytes(data []byte, c codec.Codec) (*Dataset, error) {
	if c == nil {
		c = codec.Default
	}
	var records []model.RawTrack
	if err := c.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode track collection: %w", err)
	}
	return Load(records)
}

// LoadFile reads and loads a JSON track collection from disk.
func LoadFile(path string, c codec.Codec) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track collection %s: %w", path, err)
	}
	return LoadBytes(data, c)
}
