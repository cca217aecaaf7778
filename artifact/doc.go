// Package artifact publishes the output of a pipeline run as a
// versioned artifact set. Blobs land under runs/<runID>/ and become
// visible through the CURRENT manifest pointer, which is written last
// so readers never observe a partially written run.
package artifact
