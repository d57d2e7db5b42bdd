package core

import (
	"encoding/binary"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for documents and chunks.
// IDs are minted from monotonic database sequences, so a lower chunk ID
// always means the chunk was inserted earlier.
type ID uint64

// Fingerprint returns a deterministic 64-bit BLAKE2b digest of text.
// Identical content always produces the same fingerprint.
func Fingerprint(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// IDSet is an unordered set of chunk IDs.
// A nil IDSet passed as a search restriction means "no restriction".
type IDSet map[ID]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending (insertion) order.
func (s IDSet) Sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Document is a single ingested source file.
type Document struct {
	ID         ID
	Filename   string
	PageCount  int
	ChunkCount int
	Checksum   uint64    // Fingerprint of the extracted text
	SessionID  string    // Upload session the document arrived in, if any
	IngestedAt time.Time // When the document was committed to the corpus
}

// Chunk is a bounded window of a document's text and the atomic unit of
// indexing and citation.
type Chunk struct {
	ID         ID
	DocumentID ID
	PageNumber int // 1-based page holding the chunk's first token
	Ordinal    int // 0-based position within the document
	Text       string
	TokenCount int
}

// Session groups the chunks contributed by one upload.
type Session struct {
	ID        string
	ChunkIDs  []ID
	CreatedAt time.Time
	Sealed    bool
}

// Hit is a single scored chunk returned by one index.
type Hit struct {
	ChunkID ID
	Score   float64
}

// FusedResult is a chunk ranked by the fusion of sparse and dense scores.
// SparseRank and DenseRank are 1-based; zero means the chunk was absent from
// that side.
type FusedResult struct {
	ChunkID     ID
	Score       float64
	SparseScore float64
	DenseScore  float64
	SparseRank  int
	DenseRank   int
}

// Citation attributes a retrieved passage to its file and page.
type Citation struct {
	ChunkID     ID
	DocumentID  ID
	Filename    string
	PageNumber  int
	Text        string
	Score       float64 // Fused relevance in [0,1]
	SparseScore float64
	DenseScore  float64
}

// SearchScope selects which chunks a query may return.
type SearchScope int

const (
	// ScopeGlobal searches the whole corpus.
	ScopeGlobal SearchScope = iota
	// ScopeSession restricts results to the chunks of one upload session.
	ScopeSession
	// ScopeDocuments restricts results to the chunks of named documents.
	ScopeDocuments
)

// String returns the scope's name.
func (s SearchScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeSession:
		return "session"
	case ScopeDocuments:
		return "documents"
	default:
		return "unknown"
	}
}

// RetrievalResult is the ordered output of a single query.
type RetrievalResult struct {
	Scope     SearchScope
	SessionID string
	Citations []Citation
}

// Empty reports whether the query produced no citations.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Citations) == 0
}

// DocumentInput is extracted text handed to the engine for ingestion.
// Each element of Pages is the text of one page, in order.
type DocumentInput struct {
	Filename string
	Pages    []string
}

// PreparedDocument is a chunked document awaiting commit. Vectors must hold
// one embedding per chunk, in chunk order.
type PreparedDocument struct {
	Document *Document
	Chunks   []*Chunk
	Vectors  [][]float32
}

// Texts returns the chunk texts in order, ready for embedding.
func (p *PreparedDocument) Texts() []string {
	texts := make([]string, len(p.Chunks))
	for i, c := range p.Chunks {
		texts[i] = c.Text
	}
	return texts
}

// IngestReceipt describes a committed upload.
type IngestReceipt struct {
	SessionID string
	Documents []*Document
	ChunkIDs  []ID
}

// DocumentStats reports per-document chunk counts.
type DocumentStats struct {
	Document   *Document
	ChunkCount int
}

// CorpusStats summarizes the engine's current contents.
type CorpusStats struct {
	Documents       int
	Chunks          int
	Sessions        int
	SparseSize      int
	DenseSize       int
	Dimensions      int
	VocabularySize  int
	AverageChunkLen float64 // Mean indexed terms per chunk, after stop words are removed
}
