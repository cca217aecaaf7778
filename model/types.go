package model

import (
	"fmt"
	"time"
)

// TrackID is the stable, user-facing identifier of a track.
type TrackID string

// NumFeatures is the fixed dimensionality of the audio-feature vector.
const NumFeatures = 9

// FeatureColumns lists the audio-feature fields in their fixed matrix order.
// Index i of a feature vector always corresponds to FeatureColumns[i].
var FeatureColumns = [NumFeatures]string{
	"acousticness",
	"danceability",
	"energy",
	"instrumentalness",
	"liveness",
	"loudness",
	"speechiness",
	"tempo",
	"valence",
}

// RawTrack is a track record as decoded from an input collection.
//
// The nine feature fields are pointers so that a missing field is
// distinguishable from a zero value; the loader drops records with any
// feature absent before statistics are computed.
type RawTrack struct {
	TrackID TrackID `json:"track_id"`

	Acousticness     *float32 `json:"acousticness"`
	Danceability     *float32 `json:"danceability"`
	Energy           *float32 `json:"energy"`
	Instrumentalness *float32 `json:"instrumentalness"`
	Liveness         *float32 `json:"liveness"`
	Loudness         *float32 `json:"loudness"`
	Speechiness      *float32 `json:"speechiness"`
	Tempo            *float32 `json:"tempo"`
	Valence          *float32 `json:"valence"`

	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Popularity int    `json:"popularity,omitempty"`
}

// Features returns the feature vector in FeatureColumns order and whether
// all nine fields are present.
func (r *RawTrack) Features() ([NumFeatures]float32, bool) {
	ptrs := [NumFeatures]*float32{
		r.Acousticness, r.Danceability, r.Energy, r.Instrumentalness,
		r.Liveness, r.Loudness, r.Speechiness, r.Tempo, r.Valence,
	}
	var out [NumFeatures]float32
	for i, p := range ptrs {
		if p == nil {
			return out, false
		}
		out[i] = *p
	}
	return out, true
}

// MissingColumns returns the names of absent feature fields.
func (r *RawTrack) MissingColumns() []string {
	ptrs := [NumFeatures]*float32{
		r.Acousticness, r.Danceability, r.Energy, r.Instrumentalness,
		r.Liveness, r.Loudness, r.Speechiness, r.Tempo, r.Valence,
	}
	var missing []string
	for i, p := range ptrs {
		if p == nil {
			missing = append(missing, FeatureColumns[i])
		}
	}
	return missing
}

// Track is a fully populated record after the pipeline has run.
// EmbeddingX/EmbeddingY and ClusterID are derived fields; everything else
// is carried through from the input unmodified.
type Track struct {
	TrackID TrackID `json:"track_id"`

	Acousticness     float32 `json:"acousticness"`
	Danceability     float32 `json:"danceability"`
	Energy           float32 `json:"energy"`
	Instrumentalness float32 `json:"instrumentalness"`
	Liveness         float32 `json:"liveness"`
	Loudness         float32 `json:"loudness"`
	Speechiness      float32 `json:"speechiness"`
	Tempo            float32 `json:"tempo"`
	Valence          float32 `json:"valence"`

	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Popularity int    `json:"popularity,omitempty"`

	EmbeddingX float32 `json:"embedding_x"`
	EmbeddingY float32 `json:"embedding_y"`
	ClusterID  int     `json:"cluster_id"`
}

// Node is the reduced record published for graph stores.
type Node struct {
	TrackID    TrackID `json:"track_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	ClusterID  int     `json:"cluster_id"`
	Popularity int     `json:"popularity"`
}

// Edge is a directed similarity relationship between two tracks.
//
// Edges are not symmetric: B appearing in A's top-N neighbors does not
// imply A appears in B's.
type Edge struct {
	Source     TrackID `json:"source"`
	Target     TrackID `json:"target"`
	Similarity float32 `json:"similarity"`
}

// String returns a compact representation for logs.
func (e Edge) String() string {
	return fmt.Sprintf("%s->%s(%.4f)", e.Source, e.Target, e.Similarity)
}

// KScore is one entry of a cluster-count sweep.
type KScore struct {
	K     int     `json:"k"`
	Score float64 `json:"score"`
}

// Optimization records the outcome of a cluster-count sweep, when one ran.
type Optimization struct {
	Optimized bool     `json:"optimized"`
	OptimalK  int      `json:"optimal_k,omitempty"`
	Scores    []KScore `json:"scores,omitempty"`
}

// Params echoes the configuration a run was executed with.
type Params struct {
	Clusters            int     `json:"clusters"`
	Neighbors           int     `json:"neighbors"`
	MinDist             float64 `json:"min_dist"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TopN                int     `json:"top_n"`
	Seed                int64   `json:"seed"`
}

// Stats summarizes a completed run.
type Stats struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	TotalTracks   int       `json:"total_tracks"`
	DroppedTracks int       `json:"dropped_tracks"`

	Clusters        int         `json:"n_clusters"`
	SilhouetteScore float64     `json:"silhouette_score"`
	ClusterSizes    map[int]int `json:"cluster_sizes"`

	TotalEdges       int     `json:"total_edges"`
	AvgEdgesPerTrack float64 `json:"avg_edges_per_track"`

	Params       Params       `json:"params"`
	Optimization Optimization `json:"optimization"`
}
