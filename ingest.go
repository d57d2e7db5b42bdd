package hybridrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/chunking"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/ingestion"
	"github.com/poiesic/hybridrag/storage"
)

var _ ingestion.Corpus = (*Engine)(nil)

// Prepare validates and chunks one extracted document. The result carries
// no IDs and no vectors; embed its Texts and set Vectors before Commit.
func (e *Engine) Prepare(input *core.DocumentInput) (*core.PreparedDocument, error) {
	if err := core.ValidateDocumentInput(input); err != nil {
		return nil, err
	}

	text, pageStarts := chunking.JoinPages(input.Pages)
	chunks := e.chunker.Split(text, pageStarts)

	return &core.PreparedDocument{
		Document: &core.Document{
			Filename:   input.Filename,
			PageCount:  len(input.Pages),
			ChunkCount: len(chunks),
			Checksum:   core.Fingerprint(text),
		},
		Chunks: chunks,
	}, nil
}

// Commit stores and indexes prepared documents as one transaction. When
// sessionID is not empty the new chunks are appended to that session.
//
// Input, dimensions and session state are validated before anything is
// written, and storage is written completely before the indices change.
// Chunks only become part of the stored corpus when their document record is
// written last. A failed Commit leaves the corpus exactly as it was.
// The caller's PreparedDocuments are not modified; the receipt carries the
// committed documents with their assigned IDs.
func (e *Engine) Commit(ctx context.Context, sessionID string, docs ...*core.PreparedDocument) (*core.IngestReceipt, error) {
	for _, doc := range docs {
		if err := core.ValidatePreparedDocument(doc); err != nil {
			return nil, err
		}
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if err := e.checkBatchDimensions(docs); err != nil {
		return nil, err
	}

	sess, err := e.pendingSession(sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := &storage.Batch{Vectors: make(map[core.ID][]float32)}
	receipt := &core.IngestReceipt{SessionID: sessionID}

	for _, prepared := range docs {
		docID, err := e.store.NextDocumentID()
		if err != nil {
			return nil, err
		}
		doc := *prepared.Document
		doc.ID = docID
		doc.ChunkCount = len(prepared.Chunks)
		doc.SessionID = sessionID
		doc.IngestedAt = now
		e.warnOnDuplicate(ctx, &doc)

		batch.Documents = append(batch.Documents, &doc)
		receipt.Documents = append(receipt.Documents, &doc)

		for i, c := range prepared.Chunks {
			chunkID, err := e.store.NextChunkID()
			if err != nil {
				return nil, err
			}
			chunk := *c
			chunk.ID = chunkID
			chunk.DocumentID = docID
			chunk.Ordinal = i

			batch.Chunks = append(batch.Chunks, &chunk)
			batch.Vectors[chunkID] = prepared.Vectors[i]
			receipt.ChunkIDs = append(receipt.ChunkIDs, chunkID)
		}
	}

	if sess != nil {
		sess.ChunkIDs = append(sess.ChunkIDs, receipt.ChunkIDs...)
		batch.Sessions = append(batch.Sessions, sess)
	}

	if err := e.store.Commit(ctx, batch); err != nil {
		e.logger.Error("error committing documents", "documents", len(batch.Documents), "err", err)
		return nil, err
	}

	if err := e.index(batch); err != nil {
		return nil, err
	}

	e.logger.Info("committed documents",
		"session", sessionID,
		"documents", len(batch.Documents),
		"chunks", len(batch.Chunks))
	return receipt, nil
}

// checkBatchDimensions requires every vector of the batch to match the
// dense index, or each other when the index is still empty.
// Must be called with commitMu held.
func (e *Engine) checkBatchDimensions(docs []*core.PreparedDocument) error {
	var first []float32
	for _, doc := range docs {
		if len(doc.Vectors) == 0 {
			continue
		}
		if first == nil {
			first = doc.Vectors[0]
			if err := e.dense.CheckDimensions(first); err != nil {
				return fmt.Errorf("%s: %w", doc.Document.Filename, err)
			}
			continue
		}
		if len(doc.Vectors[0]) != len(first) {
			return fmt.Errorf("%w: %s has %d dimensions, expected %d",
				core.ErrDimensionMismatch, doc.Document.Filename, len(doc.Vectors[0]), len(first))
		}
	}
	return nil
}

// pendingSession returns the session record a commit will write, or nil
// when the commit belongs to no session. Must be called with commitMu held.
func (e *Engine) pendingSession(sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	existing, err := e.registry.Get(sessionID)
	if errors.Is(err, core.ErrUnknownSession) {
		return &core.Session{ID: sessionID, CreatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.Sealed {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionSealed, sessionID)
	}
	return existing, nil
}

func (e *Engine) warnOnDuplicate(ctx context.Context, doc *core.Document) {
	dup, err := e.store.FindDocumentByChecksum(ctx, doc.Checksum)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("error checking for duplicate content", "filename", doc.Filename, "err", err)
		}
		return
	}
	e.logger.Info("document content already in corpus",
		"filename", doc.Filename,
		"existingFilename", dup.Filename,
		"existingID", dup.ID)
}

// index makes a committed batch visible to queries. Sparse and dense entries
// of a chunk appear together because queries cannot observe the write lock
// being held.
func (e *Engine) index(batch *storage.Batch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, chunk := range batch.Chunks {
		if err := e.dense.Insert(chunk.ID, batch.Vectors[chunk.ID]); err != nil {
			// Dimensions were checked under commitMu
			e.logger.Error("dense index rejected committed chunk", "chunkID", chunk.ID, "err", err)
			return err
		}
		e.sparse.Insert(chunk.ID, chunk.Text)
	}

	// The registry mirrors the persisted session record
	for _, sess := range batch.Sessions {
		e.registry.Restore(sess)
	}
	return nil
}

// SealSession freezes a session so later commits cannot add to it.
func (e *Engine) SealSession(ctx context.Context, sessionID string) error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}

	sess, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.Sealed {
		return nil
	}
	sess.Sealed = true
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	return e.registry.Seal(sessionID)
}

// NewIngestionPipeline creates a pipeline that commits into this engine.
// The pool size defaults to the configured ingestion workers.
func (e *Engine) NewIngestionPipeline(embedder ai.Embedder, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	defaults := []ingestion.Option{
		ingestion.WithPoolSize(e.config.Ingestion.Workers),
		ingestion.WithBatchSize(e.config.Embedding.BatchSize),
		ingestion.WithLogger(e.baseLogger),
	}
	return ingestion.NewPipeline(e, embedder, append(defaults, opts...)...)
}
