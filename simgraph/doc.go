// Package simgraph builds the sparse track-similarity graph: pairwise
// cosine similarity with per-source top-N truncation and a strict
// threshold filter.
//
// The pairwise pass scales with the square of the catalog size, so rows
// are processed in bounded blocks and the full similarity matrix is never
// held in memory. Edges are directed: the graph is intentionally
// asymmetric.
package simgraph
