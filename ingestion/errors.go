package ingestion

import "errors"

var (
	// ErrCorpusRequired is returned when a corpus is not provided.
	ErrCorpusRequired = errors.New("corpus required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNoDocuments is returned when Ingest is called without documents.
	ErrNoDocuments = errors.New("no documents to ingest")

	// ErrSessionNotSealed is returned when an upload was committed but its
	// session could not be sealed.
	ErrSessionNotSealed = errors.New("upload committed but session not sealed")
)
