// Package model defines the core types shared across the pipeline.
//
// # Identity
//
//   - TrackID: stable string identifier supplied by the input collection
//
// # Records
//
//   - RawTrack: input record with optional feature fields (nil = missing)
//   - Track: retained record augmented with embedding and cluster label
//   - Node, Edge: the graph-store projections of a processed catalog
//
// # Run output
//
//   - Stats: counts, chosen cluster count, edge totals, and the full
//     parameter echo of a run
package model
