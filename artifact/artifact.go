package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/hupe1980/trackgraph/blobstore"
	"github.com/hupe1980/trackgraph/codec"
	"github.com/hupe1980/trackgraph/model"
)

const (
	// TracksFileName holds the per-track rows with embedding and cluster.
	TracksFileName = "tracks_with_clusters.json"
	// NodesFileName holds the graph node list.
	NodesFileName = "nodes.json"
	// EdgesFileName holds the similarity edge list.
	EdgesFileName = "edges.json"
	// StatsFileName holds the run summary.
	StatsFileName = "stats.json"
	// ManifestFileName is the per-run manifest blob.
	ManifestFileName = "MANIFEST.json"
	// CurrentFileName points at the manifest of the last committed run.
	CurrentFileName = "CURRENT"

	manifestVersion = 1
)

// Set is a complete artifact set for one pipeline run. All four blobs
// are published together or not at all.
type Set struct {
	Tracks []model.Track
	Nodes  []model.Node
	Edges  []model.Edge
	Stats  model.Stats
}

// Manifest describes one committed run. CURRENT contains the JSON
// encoding of the latest manifest, so readers resolve blob paths without
// listing the store.
type Manifest struct {
	Version     int               `json:"version"`
	RunID       string            `json:"run_id"`
	CreatedAt   time.Time         `json:"created_at"`
	Compression string            `json:"compression"`
	Files       map[string]string `json:"files"`
}

// Writer publishes artifact sets to a blob store. Each run lands under
// runs/<runID>/ and becomes visible only when CURRENT is switched, which
// is the last write. A crash before that leaves the previous run intact.
type Writer struct {
	store       blobstore.Store
	codec       codec.Codec
	compression Compression
	logger      *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCodec overrides the blob codec.
func WithCodec(c codec.Codec) WriterOption {
	return func(w *Writer) { w.codec = c }
}

// WithCompression sets the blob compression.
func WithCompression(c Compression) WriterOption {
	return func(w *Writer) { w.compression = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer on top of store.
func NewWriter(store blobstore.Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:       store,
		codec:       codec.Default,
		compression: CompressionNone,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write publishes the set under runs/<runID>/ and commits it by
// switching CURRENT to the new manifest. On failure nothing is
// committed and already written blobs are removed best effort.
func (w *Writer) Write(ctx context.Context, runID string, set *Set) (*Manifest, error) {
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}

	m := &Manifest{
		Version:     manifestVersion,
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		Compression: w.compression.String(),
		Files:       make(map[string]string, 4),
	}

	blobs := []struct {
		name  string
		value any
	}{
		{TracksFileName, set.Tracks},
		{NodesFileName, set.Nodes},
		{EdgesFileName, set.Edges},
		{StatsFileName, set.Stats},
	}

	var written []string

	fail := func(err error) (*Manifest, error) {
		for _, name := range written {
			if derr := w.store.Delete(ctx, name); derr != nil {
				w.logger.Warn("failed to clean up blob after write error", "blob", name, "error", derr)
			}
		}
		return nil, err
	}

	for _, b := range blobs {
		data, err := w.codec.Marshal(b.value)
		if err != nil {
			return fail(fmt.Errorf("marshal %s: %w", b.name, err))
		}
		data, err = compress(data, w.compression)
		if err != nil {
			return fail(fmt.Errorf("compress %s: %w", b.name, err))
		}

		blobPath := path.Join("runs", runID, b.name+w.compression.suffix())
		if err := w.store.Put(ctx, blobPath, data); err != nil {
			return fail(fmt.Errorf("write %s: %w", blobPath, err))
		}
		written = append(written, blobPath)
		m.Files[b.name] = blobPath

		w.logger.Debug("wrote artifact blob", "blob", blobPath, "bytes", len(data))
	}

	manifestData, err := w.codec.Marshal(m)
	if err != nil {
		return fail(fmt.Errorf("marshal manifest: %w", err))
	}

	manifestPath := path.Join("runs", runID, ManifestFileName)
	if err := w.store.Put(ctx, manifestPath, manifestData); err != nil {
		return fail(fmt.Errorf("write %s: %w", manifestPath, err))
	}
	written = append(written, manifestPath)

	// Commit. CURRENT carries the full manifest so a reader needs one Get.
	if err := w.store.Put(ctx, CurrentFileName, manifestData); err != nil {
		return fail(fmt.Errorf("commit %s: %w", CurrentFileName, err))
	}

	w.logger.Info("committed artifact set", "run_id", runID, "compression", m.Compression)

	return m, nil
}

// Reader loads committed artifact sets.
type Reader struct {
	store blobstore.Store
	codec codec.Codec
}

// NewReader creates a Reader on top of store.
func NewReader(store blobstore.Store, opts ...ReaderOption) *Reader {
	r := &Reader{store: store, codec: codec.Default}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderCodec overrides the blob codec.
func WithReaderCodec(c codec.Codec) ReaderOption {
	return func(r *Reader) { r.codec = c }
}

// Current returns the manifest of the last committed run, or
// blobstore.ErrNotFound if nothing has been committed yet.
func (r *Reader) Current(ctx context.Context) (*Manifest, error) {
	data, err := r.store.Get(ctx, CurrentFileName)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := r.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", CurrentFileName, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}

	return &m, nil
}

// Load reads the full artifact set the manifest describes.
func (r *Reader) Load(ctx context.Context, m *Manifest) (*Set, error) {
	comp, err := ParseCompression(m.Compression)
	if err != nil {
		return nil, err
	}

	read := func(name string, v any) error {
		blobPath, ok := m.Files[name]
		if !ok {
			return fmt.Errorf("manifest has no entry for %s", name)
		}
		data, err := r.store.Get(ctx, blobPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", blobPath, err)
		}
		data, err = decompress(data, comp)
		if err != nil {
			return fmt.Errorf("decompress %s: %w", blobPath, err)
		}
		return r.codec.Unmarshal(data, v)
	}

	var set Set
	if err := read(TracksFileName, &set.Tracks); err != nil {
		return nil, err
	}
	if err := read(NodesFileName, &set.Nodes); err != nil {
		return nil, err
	}
	if err := read(EdgesFileName, &set.Edges); err != nil {
		return nil, err
	}
	if err := read(StatsFileName, &set.Stats); err != nil {
		return nil, err
	}

	return &set, nil
}
