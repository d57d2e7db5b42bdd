// Package reembed rewrites the stored vector of every chunk with a new or
// updated embedding model.
//
// Chunks are read in insertion order in fixed-size batches, embedded with
// retry and exponential backoff, normalized to unit length and written back
// one batch per transaction. Progress is reported to an io.Writer. The
// retrieval engine rebuilds its dense index from the rewritten vectors once
// a run completes.
package reembed
