// Package umap maps normalized feature matrices to a 2-D embedding for
// visualization, using a UMAP-style neighborhood-preserving layout.
//
// The embedding is exploratory output only: clustering and the similarity
// graph always operate on the full normalized feature vectors, never on
// these coordinates.
package umap
