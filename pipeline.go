// Package trackgraph turns a collection of audio-feature track records
// into a published artifact set: a 2-D embedding, a cluster assignment,
// and a top-N cosine similarity graph.
//
// A run is fully deterministic for a given input and seed. Artifacts are
// committed atomically: each run lands under runs/<runID>/ in the blob
// store and becomes visible only once the CURRENT pointer is switched.
//
// # Quick Start
//
//	store, err := blobstore.NewLocalStore("./artifacts")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pipe, err := trackgraph.New(store,
//	    trackgraph.WithClusters(8),
//	    trackgraph.WithLogLevel(slog.LevelInfo),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := pipe.RunFile(ctx, "tracks.json")
//
// Errors fall into four categories: InputError (unreadable or empty
// collections), ConfigError (parameters the data cannot satisfy),
// ComputationError (a stage failed mid-run) and OutputError (the artifact
// set could not be published).
package trackgraph

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/trackgraph/artifact"
	"github.com/hupe1980/trackgraph/blobstore"
	"github.com/hupe1980/trackgraph/dataset"
	"github.com/hupe1980/trackgraph/kmeans"
	"github.com/hupe1980/trackgraph/model"
	"github.com/hupe1980/trackgraph/simgraph"
	"github.com/hupe1980/trackgraph/umap"
)

// Pipeline executes runs against a blob store. It is safe to reuse for
// multiple runs; each run gets its own ID and artifact prefix.
type Pipeline struct {
	store blobstore.Store
	opts  options
}

// New creates a Pipeline publishing to store.
func New(store blobstore.Store, optFns ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, &ConfigError{Reason: "blob store must not be nil"}
	}

	o := applyOptions(optFns)
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}

	p := o.params
	if p.Clusters < 2 {
		return nil, &ConfigError{Reason: fmt.Sprintf("clusters must be at least 2, got %d", p.Clusters)}
	}
	if p.Neighbors < 2 {
		return nil, &ConfigError{Reason: fmt.Sprintf("neighbors must be at least 2, got %d", p.Neighbors)}
	}
	if p.MinDist <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("min_dist must be positive, got %g", p.MinDist)}
	}
	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("similarity threshold must be in [0, 1], got %g", p.SimilarityThreshold)}
	}
	if p.TopN < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("top_n must be at least 1, got %d", p.TopN)}
	}
	if o.optimize {
		if o.kMin < 2 {
			return nil, &ConfigError{Reason: fmt.Sprintf("k_min must be at least 2, got %d", o.kMin)}
		}
		if o.kMax <= o.kMin {
			return nil, &ConfigError{Reason: fmt.Sprintf("k range [%d, %d) is empty", o.kMin, o.kMax)}
		}
	}

	return &Pipeline{store: store, opts: o}, nil
}

// RunFile decodes a JSON track collection from disk and runs the pipeline.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*model.Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputError{Path: path, cause: err}
	}

	var records []model.RawTrack
	if err := p.opts.codec.Unmarshal(data, &records); err != nil {
		return nil, &InputError{Path: path, cause: err}
	}

	return p.Run(ctx, records)
}

// Run executes the full pipeline over records and publishes the artifact
// set. The returned Stats mirror what lands in stats.json.
func (p *Pipeline) Run(ctx context.Context, records []model.RawTrack) (*model.Stats, error) {
	started := time.Now().UTC()
	runID := p.opts.newRunID()
	logger := p.opts.logger.WithRunID(runID)

	logger.InfoContext(ctx, "run started", "records", len(records))

	// Load and validate.
	stageStart := time.Now()
	ds, err := dataset.Load(records)
	logger.LogStage(ctx, "load", stageStart, err)
	if err != nil {
		return nil, translateStageError("load", err)
	}
	n := ds.Len()
	if ds.Dropped > 0 {
		logger.WarnContext(ctx, "dropped incomplete tracks", "dropped", ds.Dropped, "retained", n)
	}
	if !p.opts.optimize && p.opts.params.Clusters > n {
		return nil, &ConfigError{Reason: fmt.Sprintf("%d clusters requested but only %d complete tracks", p.opts.params.Clusters, n)}
	}

	// Normalize in place. Tracks keep their original feature values; only
	// the matrix is scaled.
	stageStart = time.Now()
	_, err = dataset.FitTransform(ds.Matrix, model.NumFeatures)
	logger.LogStage(ctx, "normalize", stageStart, err)
	if err != nil {
		return nil, translateStageError("normalize", err)
	}

	// Embed into 2-D.
	stageStart = time.Now()
	emb, err := umap.Embed(ctx, ds.Matrix, model.NumFeatures, umap.Options{
		Neighbors: p.opts.params.Neighbors,
		MinDist:   p.opts.params.MinDist,
		Seed:      p.opts.params.Seed,
	})
	logger.LogStage(ctx, "embed", stageStart, err)
	if err != nil {
		return nil, translateStageError("embed", err)
	}

	// Pick k, by sweep or fixed.
	k := p.opts.params.Clusters
	optimization := model.Optimization{}

	kmOpts := kmeans.Options{
		Seed:     p.opts.params.Seed,
		Parallel: p.opts.parallelRestarts,
	}

	if p.opts.optimize {
		stageStart = time.Now()
		sweep, err := kmeans.SelectK(ctx, ds.Matrix, model.NumFeatures, p.opts.kMin, p.opts.kMax, kmOpts)
		logger.LogStage(ctx, "select_k", stageStart, err)
		if err != nil {
			return nil, translateStageError("select_k", err)
		}
		k = sweep.BestK
		optimization = model.Optimization{
			Optimized: true,
			OptimalK:  sweep.BestK,
			Scores:    sweep.Scores,
		}
		logger.InfoContext(ctx, "cluster count selected", "k", k, "silhouette", sweep.BestScore)
	}

	// Cluster.
	stageStart = time.Now()
	result, err := kmeans.Train(ctx, ds.Matrix, model.NumFeatures, k, kmOpts)
	logger.LogStage(ctx, "cluster", stageStart, err)
	if err != nil {
		return nil, translateStageError("cluster", err)
	}

	// Silhouette of the final partition, when defined (2 <= k < n).
	var silhouette float64
	if k >= 2 && k < n {
		silhouette, err = kmeans.Silhouette(ds.Matrix, model.NumFeatures, result.Labels, k)
		if err != nil {
			return nil, translateStageError("silhouette", err)
		}
	}

	// Similarity graph over the normalized features.
	stageStart = time.Now()
	edges, err := simgraph.Build(ctx, ds.Matrix, model.NumFeatures, ds.IDs, simgraph.Options{
		TopN:      p.opts.params.TopN,
		Threshold: p.opts.params.SimilarityThreshold,
		Logger:    logger.Logger,
	})
	logger.LogStage(ctx, "graph", stageStart, err)
	if err != nil {
		return nil, translateStageError("graph", err)
	}

	set := p.assemble(ds, emb, result.Labels, edges)

	stats := &model.Stats{
		RunID:           runID,
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
		TotalTracks:     n,
		DroppedTracks:   ds.Dropped,
		Clusters:        k,
		SilhouetteScore: silhouette,
		ClusterSizes:    clusterSizes(result.Labels),
		TotalEdges:      len(edges),
		Params: model.Params{
			Clusters:            k,
			Neighbors:           p.opts.params.Neighbors,
			MinDist:             p.opts.params.MinDist,
			SimilarityThreshold: p.opts.params.SimilarityThreshold,
			TopN:                p.opts.params.TopN,
			Seed:                p.opts.params.Seed,
		},
		Optimization: optimization,
	}
	if n > 0 {
		stats.AvgEdgesPerTrack = float64(len(edges)) / float64(n)
	}
	set.Stats = *stats

	// Publish.
	stageStart = time.Now()
	writer := artifact.NewWriter(p.store,
		artifact.WithCodec(p.opts.codec),
		artifact.WithCompression(p.opts.compression),
		artifact.WithLogger(logger.Logger),
	)
	_, err = writer.Write(ctx, runID, set)
	logger.LogStage(ctx, "publish", stageStart, err)
	if err != nil {
		return nil, &OutputError{cause: err}
	}

	logger.InfoContext(ctx, "run completed",
		"tracks", n,
		"dropped", ds.Dropped,
		"clusters", k,
		"edges", len(edges),
		"elapsed", time.Since(started),
	)

	return stats, nil
}

// assemble joins retained records with their derived embedding and cluster
// into the publishable artifact set.
func (p *Pipeline) assemble(ds *dataset.Dataset, emb []float32, labels []int, edges []model.Edge) *artifact.Set {
	n := ds.Len()
	tracks := make([]model.Track, n)
	nodes := make([]model.Node, n)

	for i, raw := range ds.Tracks {
		vec, _ := raw.Features()
		tracks[i] = model.Track{
			TrackID:          raw.TrackID,
			Acousticness:     vec[0],
			Danceability:     vec[1],
			Energy:           vec[2],
			Instrumentalness: vec[3],
			Liveness:         vec[4],
			Loudness:         vec[5],
			Speechiness:      vec[6],
			Tempo:            vec[7],
			Valence:          vec[8],
			Title:            raw.Title,
			Artist:           raw.Artist,
			Popularity:       raw.Popularity,
			EmbeddingX:       emb[i*2],
			EmbeddingY:       emb[i*2+1],
			ClusterID:        labels[i],
		}
		nodes[i] = model.Node{
			TrackID:    raw.TrackID,
			Title:      raw.Title,
			Artist:     raw.Artist,
			ClusterID:  labels[i],
			Popularity: raw.Popularity,
		}
	}

	return &artifact.Set{
		Tracks: tracks,
		Nodes:  nodes,
		Edges:  edges,
	}
}

func clusterSizes(labels []int) map[int]int {
	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	return sizes
}
