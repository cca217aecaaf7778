package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them
// onto config paths, e.g. TRACKGRAPH_TOP_N -> pipeline.top_n.
const EnvPrefix = "TRACKGRAPH_"

// Config is the full runtime configuration.
type Config struct {
	Input    InputConfig    `koanf:"input"`
	Output   OutputConfig   `koanf:"output"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// InputConfig locates the track collection to process.
type InputConfig struct {
	Path string `koanf:"path"`
}

// OutputConfig selects and parameterizes the artifact backend.
type OutputConfig struct {
	// Backend is one of "local", "memory", "minio", "s3".
	Backend string `koanf:"backend"`
	// Dir is the root directory for the local backend.
	Dir string `koanf:"dir"`

	// Bucket and Prefix apply to the minio and s3 backends.
	Bucket string `koanf:"bucket"`
	Prefix string `koanf:"prefix"`

	// Endpoint, AccessKey and SecretKey apply to the minio backend.
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`

	// Region and CommitTable apply to the s3 backend. A non-empty
	// CommitTable routes CURRENT commits through DynamoDB.
	Region      string `koanf:"region"`
	CommitTable string `koanf:"commit_table"`

	// Compression is one of "none", "lz4", "zstd".
	Compression string `koanf:"compression"`
}

// PipelineConfig carries the knobs of a pipeline run.
type PipelineConfig struct {
	Clusters         int     `koanf:"clusters"`
	OptimizeClusters bool    `koanf:"optimize_clusters"`
	KMin             int     `koanf:"k_min"`
	KMax             int     `koanf:"k_max"`
	Neighbors        int     `koanf:"neighbors"`
	MinDist          float64 `koanf:"min_dist"`
	Threshold        float64 `koanf:"threshold"`
	TopN             int     `koanf:"top_n"`
	Seed             int64   `koanf:"seed"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Path: "tracks.json",
		},
		Output: OutputConfig{
			Backend:     "local",
			Dir:         "artifacts",
			Prefix:      "trackgraph",
			Compression: "none",
		},
		Pipeline: PipelineConfig{
			Clusters:         10,
			OptimizeClusters: false,
			KMin:             2,
			KMax:             21,
			Neighbors:        15,
			MinDist:          0.1,
			Threshold:        0.7,
			TopN:             15,
			Seed:             42,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from three layers: defaults, an optional
// YAML file, then TRACKGRAPH_ environment variables on top.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envMappings routes flat environment names onto nested config paths.
// Unknown variables are dropped so unrelated environment noise cannot
// leak into the config.
var envMappings = map[string]string{
	"input_path": "input.path",

	"output_backend":      "output.backend",
	"output_dir":          "output.dir",
	"output_bucket":       "output.bucket",
	"output_prefix":       "output.prefix",
	"output_endpoint":     "output.endpoint",
	"output_access_key":   "output.access_key",
	"output_secret_key":   "output.secret_key",
	"output_use_ssl":      "output.use_ssl",
	"output_region":       "output.region",
	"output_commit_table": "output.commit_table",
	"output_compression":  "output.compression",

	"clusters":          "pipeline.clusters",
	"optimize_clusters": "pipeline.optimize_clusters",
	"k_min":             "pipeline.k_min",
	"k_max":             "pipeline.k_max",
	"neighbors":         "pipeline.neighbors",
	"min_dist":          "pipeline.min_dist",
	"threshold":         "pipeline.threshold",
	"top_n":             "pipeline.top_n",
	"seed":              "pipeline.seed",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

var validBackends = map[string]bool{
	"local":  true,
	"memory": true,
	"minio":  true,
	"s3":     true,
}

var validCompressions = map[string]bool{
	"":     true,
	"none": true,
	"lz4":  true,
	"zstd": true,
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input.path must not be empty")
	}

	if !validBackends[c.Output.Backend] {
		return fmt.Errorf("output.backend %q is not one of local, memory, minio, s3", c.Output.Backend)
	}
	if c.Output.Backend == "local" && c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty for the local backend")
	}
	if (c.Output.Backend == "minio" || c.Output.Backend == "s3") && c.Output.Bucket == "" {
		return fmt.Errorf("output.bucket must not be empty for the %s backend", c.Output.Backend)
	}
	if c.Output.Backend == "minio" && c.Output.Endpoint == "" {
		return fmt.Errorf("output.endpoint must not be empty for the minio backend")
	}
	if !validCompressions[c.Output.Compression] {
		return fmt.Errorf("output.compression %q is not one of none, lz4, zstd", c.Output.Compression)
	}

	p := c.Pipeline
	if p.Clusters < 2 {
		return fmt.Errorf("pipeline.clusters must be at least 2, got %d", p.Clusters)
	}
	if p.OptimizeClusters {
		if p.KMin < 2 {
			return fmt.Errorf("pipeline.k_min must be at least 2, got %d", p.KMin)
		}
		if p.KMax <= p.KMin {
			return fmt.Errorf("pipeline.k_max must be greater than k_min, got [%d, %d)", p.KMin, p.KMax)
		}
	}
	if p.Neighbors < 2 {
		return fmt.Errorf("pipeline.neighbors must be at least 2, got %d", p.Neighbors)
	}
	if p.MinDist <= 0 {
		return fmt.Errorf("pipeline.min_dist must be positive, got %g", p.MinDist)
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("pipeline.threshold must be in [0, 1], got %g", p.Threshold)
	}
	if p.TopN < 1 {
		return fmt.Errorf("pipeline.top_n must be at least 1, got %d", p.TopN)
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format %q is not json or text", c.Logging.Format)
	}

	return nil
}
