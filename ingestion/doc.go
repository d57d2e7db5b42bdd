// Package ingestion turns extracted documents into committed, searchable
// chunks.
//
// The Pipeline type manages one upload at a time:
//   - Chunking every document through the corpus
//   - Generating embeddings concurrently on a worker pool
//   - Committing all documents of the upload in a single transaction
//   - Sealing the upload's session
//
// Any failure before the commit leaves the corpus untouched.
package ingestion
