package trackgraph

import (
	"log/slog"

	"github.com/hupe1980/trackgraph/artifact"
	"github.com/hupe1980/trackgraph/codec"
	"github.com/hupe1980/trackgraph/model"
)

// DefaultParams mirror the reference defaults.
var DefaultParams = model.Params{
	Clusters:            10,
	Neighbors:           15,
	MinDist:             0.1,
	SimilarityThreshold: 0.7,
	TopN:                15,
	Seed:                42,
}

type options struct {
	params           model.Params
	optimize         bool
	kMin             int
	kMax             int
	codec            codec.Codec
	compression      artifact.Compression
	logger           *Logger
	parallelRestarts bool
	newRunID         func() string
}

// Option configures Pipeline construction.
type Option func(*options)

// WithClusters sets the fixed cluster count.
func WithClusters(n int) Option {
	return func(o *options) {
		o.params.Clusters = n
	}
}

// WithNeighbors sets the embedding neighborhood size.
func WithNeighbors(n int) Option {
	return func(o *options) {
		o.params.Neighbors = n
	}
}

// WithMinDist sets the minimum embedding point spacing.
func WithMinDist(d float64) Option {
	return func(o *options) {
		o.params.MinDist = d
	}
}

// WithSimilarityThreshold sets the graph edge threshold. Zero is a valid
// value: every positive-similarity neighbor qualifies.
func WithSimilarityThreshold(threshold float64) Option {
	return func(o *options) {
		o.params.SimilarityThreshold = threshold
	}
}

// WithTopN sets the outgoing edge cap per track.
func WithTopN(n int) Option {
	return func(o *options) {
		o.params.TopN = n
	}
}

// WithSeed sets the random seed. Zero is a valid seed, not a request for
// the default.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.params.Seed = seed
	}
}

// WithOptimizedClusters enables the silhouette sweep over k in [kMin, kMax)
// instead of the fixed cluster count.
func WithOptimizedClusters(kMin, kMax int) Option {
	return func(o *options) {
		o.optimize = true
		o.kMin = kMin
		o.kMax = kMax
	}
}

// WithCodec configures the codec used for artifact blobs.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures artifact blob compression.
func WithCompression(c artifact.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging for the run.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithParallelRestarts runs k-means restarts concurrently. The result is
// identical either way.
func WithParallelRestarts(parallel bool) Option {
	return func(o *options) {
		o.parallelRestarts = parallel
	}
}

// WithRunIDFunc overrides run ID generation. Useful for tests that need
// stable blob paths.
func WithRunIDFunc(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newRunID = fn
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		params: DefaultParams,
		kMin:   2,
		kMax:   21,
		codec:  codec.Default,
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
