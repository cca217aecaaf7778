// Package kmeans implements centroid-based partitioning of track feature
// matrices via Lloyd's algorithm, plus silhouette scoring for picking a
// cluster count.
//
// Training is deterministic for a fixed seed: restarts derive their own
// seeded sources, the best run wins by within-cluster variance, and empty
// clusters are repaired by a fixed-order scan rather than random reseeding.
package kmeans
