package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/trackgraph"
	"github.com/hupe1980/trackgraph/artifact"
	"github.com/hupe1980/trackgraph/blobstore"
	miniostore "github.com/hupe1980/trackgraph/blobstore/minio"
	"github.com/hupe1980/trackgraph/blobstore/s3"
	"github.com/hupe1980/trackgraph/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "trackgraph",
	Short: "Build embeddings, clusters and a similarity graph from audio features",
	Long: `Trackgraph loads a JSON collection of tracks with audio features,
projects them into a 2-D embedding, assigns clusters and builds a top-N
cosine similarity graph. The results are published as a versioned
artifact set to a local directory or an object store.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline and publish a new artifact set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd)
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the stats of the last committed run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showCurrent(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	f := runCmd.Flags()
	f.String("input", "", "path to the track collection JSON")
	f.String("output-backend", "", "artifact backend: local, memory, minio, s3")
	f.String("output-dir", "", "artifact directory for the local backend")
	f.String("compression", "", "artifact compression: none, lz4, zstd")
	f.Int("clusters", 0, "fixed cluster count")
	f.Bool("optimize-clusters", false, "select the cluster count by silhouette sweep")
	f.Int("k-min", 0, "sweep lower bound (inclusive)")
	f.Int("k-max", 0, "sweep upper bound (exclusive)")
	f.Int("neighbors", 0, "embedding neighborhood size")
	f.Float64("min-dist", 0, "minimum embedding point spacing")
	f.Float64("threshold", -1, "similarity threshold for graph edges")
	f.Int("top-n", 0, "maximum outgoing edges per track")
	f.Int64("seed", 0, "random seed")
	f.Bool("parallel", false, "run k-means restarts concurrently")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(currentCmd)

	rootCmd.RunE = runCmd.RunE
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file with command line overrides. Flags win
// over both the file and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if f.Changed("input") {
		cfg.Input.Path, _ = f.GetString("input")
	}
	if f.Changed("output-backend") {
		cfg.Output.Backend, _ = f.GetString("output-backend")
	}
	if f.Changed("output-dir") {
		cfg.Output.Dir, _ = f.GetString("output-dir")
	}
	if f.Changed("compression") {
		cfg.Output.Compression, _ = f.GetString("compression")
	}
	if f.Changed("clusters") {
		cfg.Pipeline.Clusters, _ = f.GetInt("clusters")
	}
	if f.Changed("optimize-clusters") {
		cfg.Pipeline.OptimizeClusters, _ = f.GetBool("optimize-clusters")
	}
	if f.Changed("k-min") {
		cfg.Pipeline.KMin, _ = f.GetInt("k-min")
	}
	if f.Changed("k-max") {
		cfg.Pipeline.KMax, _ = f.GetInt("k-max")
	}
	if f.Changed("neighbors") {
		cfg.Pipeline.Neighbors, _ = f.GetInt("neighbors")
	}
	if f.Changed("min-dist") {
		cfg.Pipeline.MinDist, _ = f.GetFloat64("min-dist")
	}
	if f.Changed("threshold") {
		cfg.Pipeline.Threshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("top-n") {
		cfg.Pipeline.TopN, _ = f.GetInt("top-n")
	}
	if f.Changed("seed") {
		cfg.Pipeline.Seed, _ = f.GetInt64("seed")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) *trackgraph.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.Format == "json" {
		return trackgraph.NewJSONLogger(level)
	}
	return trackgraph.NewTextLogger(level)
}

func newStore(ctx context.Context, cfg config.OutputConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "local":
		return blobstore.NewLocalStore(cfg.Dir)
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	case "s3":
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		store := s3.NewStore(s3sdk.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
		if cfg.CommitTable != "" {
			baseURI := fmt.Sprintf("s3://%s/%s", cfg.Bucket, cfg.Prefix)
			return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.CommitTable, baseURI), nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func runPipeline(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg.Output)
	if err != nil {
		return err
	}

	compression, err := artifact.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return err
	}

	parallel, _ := cmd.Flags().GetBool("parallel")

	// Config values are passed through as-is; the layered config already
	// applied the defaults, so zero here means the user asked for zero.
	opts := []trackgraph.Option{
		trackgraph.WithClusters(cfg.Pipeline.Clusters),
		trackgraph.WithNeighbors(cfg.Pipeline.Neighbors),
		trackgraph.WithMinDist(cfg.Pipeline.MinDist),
		trackgraph.WithSimilarityThreshold(cfg.Pipeline.Threshold),
		trackgraph.WithTopN(cfg.Pipeline.TopN),
		trackgraph.WithSeed(cfg.Pipeline.Seed),
		trackgraph.WithCompression(compression),
		trackgraph.WithLogger(newLogger(cfg.Logging)),
		trackgraph.WithParallelRestarts(parallel),
	}
	if cfg.Pipeline.OptimizeClusters {
		opts = append(opts, trackgraph.WithOptimizedClusters(cfg.Pipeline.KMin, cfg.Pipeline.KMax))
	}

	pipe, err := trackgraph.New(store, opts...)
	if err != nil {
		return err
	}

	stats, err := pipe.RunFile(ctx, cfg.Input.Path)
	if err != nil {
		return err
	}

	fmt.Printf("run %s committed: %d tracks (%d dropped), %d clusters, %d edges\n",
		stats.RunID, stats.TotalTracks, stats.DroppedTracks, stats.Clusters, stats.TotalEdges)

	return nil
}

func showCurrent(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg.Output)
	if err != nil {
		return err
	}

	reader := artifact.NewReader(store)
	m, err := reader.Current(ctx)
	if err != nil {
		return fmt.Errorf("no committed run: %w", err)
	}

	set, err := reader.Load(ctx, m)
	if err != nil {
		return err
	}

	s := set.Stats
	fmt.Printf("run %s (committed %s)\n", m.RunID, m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  tracks:     %d (%d dropped)\n", s.TotalTracks, s.DroppedTracks)
	fmt.Printf("  clusters:   %d (silhouette %.4f)\n", s.Clusters, s.SilhouetteScore)
	fmt.Printf("  edges:      %d (%.2f per track)\n", s.TotalEdges, s.AvgEdgesPerTrack)
	if s.Optimization.Optimized {
		fmt.Println("  k sweep:")
		for _, ks := range s.Optimization.Scores {
			marker := " "
			if ks.K == s.Optimization.OptimalK {
				marker = "*"
			}
			fmt.Printf("   %s k=%-3d silhouette %.4f\n", marker, ks.K, ks.Score)
		}
	}

	return nil
}
