// Package dataset loads raw track collections into a feature matrix and
// standardizes it.
//
// Loading drops any record missing one or more of the nine required audio
// features before any statistic is computed, so normalization parameters
// are never fitted over partial vectors. The dropped count is carried on
// the Dataset and surfaces in run statistics.
package dataset
