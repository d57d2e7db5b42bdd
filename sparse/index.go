package sparse

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/poiesic/hybridrag/core"
)

const (
	// DefaultK1 controls term frequency saturation.
	DefaultK1 = 1.5
	// DefaultB controls chunk length normalization.
	DefaultB = 0.75
)

// entry is the per-chunk term-frequency table.
type entry struct {
	tf     map[string]int
	length int
}

// Index is an in-memory BM25 index over chunk text.
// It is safe for concurrent use: searches share a read lock, while inserts
// and removals take the write lock.
type Index struct {
	mu          sync.RWMutex
	k1          float64
	b           float64
	analyzer    *analyzer
	entries     map[core.ID]*entry
	postings    map[string]map[core.ID]int
	totalLength int
	logger      *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithK1 sets the BM25 k1 constant.
func WithK1(k1 float64) Option {
	return func(idx *Index) error {
		if k1 < 0 || math.IsNaN(k1) {
			return fmt.Errorf("%w: bm25 k1 must be non-negative, got %v", core.ErrInvalidConfiguration, k1)
		}
		idx.k1 = k1
		return nil
	}
}

// WithB sets the BM25 b constant.
func WithB(b float64) Option {
	return func(idx *Index) error {
		if b < 0 || b > 1 || math.IsNaN(b) {
			return fmt.Errorf("%w: bm25 b must be within [0,1], got %v", core.ErrInvalidConfiguration, b)
		}
		idx.b = b
		return nil
	}
}

// WithStopWords replaces the default stop word list. Pass nil to index every word.
func WithStopWords(words []string) Option {
	return func(idx *Index) error {
		idx.analyzer = newAnalyzer(words)
		return nil
	}
}

// WithLogger sets a custom logger for the index.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger != nil {
			idx.logger = logger
		}
		return nil
	}
}

// New creates an empty index.
func New(opts ...Option) (*Index, error) {
	idx := &Index{
		k1:       DefaultK1,
		b:        DefaultB,
		analyzer: newAnalyzer(DefaultStopWords),
		entries:  make(map[core.ID]*entry),
		postings: make(map[string]map[core.ID]int),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "sparse-index")
	return idx, nil
}

// Insert indexes text under id. An existing entry for id is replaced.
func (idx *Index) Insert(id core.ID, text string) {
	terms := idx.analyzer.terms(text)
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(id)
	idx.entries[id] = &entry{tf: tf, length: len(terms)}
	idx.totalLength += len(terms)
	for t, n := range tf {
		p, ok := idx.postings[t]
		if !ok {
			p = make(map[core.ID]int)
			idx.postings[t] = p
		}
		p[id] = n
	}
}

// Remove drops id from the index. Removing an unknown id is a no-op.
func (idx *Index) Remove(id core.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id core.ID) {
	e, ok := idx.entries[id]
	if !ok {
		return
	}
	for t := range e.tf {
		p := idx.postings[t]
		delete(p, id)
		if len(p) == 0 {
			delete(idx.postings, t)
		}
	}
	idx.totalLength -= e.length
	delete(idx.entries, id)
}

// Search scores every chunk sharing a term with query and returns the best k
// (all matches when k <= 0). When candidates is non-nil only those chunks are
// returned; idf and average length are still computed over the whole corpus.
// Equal scores are ordered by ascending chunk ID.
func (idx *Index) Search(query string, candidates core.IDSet, k int) []core.Hit {
	terms := idx.analyzer.terms(query)
	if len(terms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.entries)
	if n == 0 {
		return nil
	}
	avgdl := float64(idx.totalLength) / float64(n)

	scores := make(map[core.ID]float64)
	for _, t := range terms {
		p, ok := idx.postings[t]
		if !ok {
			continue
		}
		idf := idx.idf(n, len(p))
		for id, tf := range p {
			if candidates != nil && !candidates.Contains(id) {
				continue
			}
			scores[id] += idf * idx.termWeight(tf, idx.entries[id].length, avgdl)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]core.Hit, 0, len(scores))
	for id, s := range scores {
		hits = append(hits, core.Hit{ChunkID: id, Score: s})
	}
	slices.SortFunc(hits, func(a, b core.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	idx.logger.Debug("sparse search", "terms", len(terms), "matches", len(scores), "returned", len(hits))
	return hits
}

// idf is ln((N - n + 0.5)/(n + 0.5) + 1), which stays positive for every n <= N.
func (idx *Index) idf(corpusSize, docFreq int) float64 {
	return math.Log((float64(corpusSize-docFreq)+0.5)/(float64(docFreq)+0.5) + 1)
}

func (idx *Index) termWeight(tf, length int, avgdl float64) float64 {
	norm := 1 - idx.b
	if avgdl > 0 {
		norm += idx.b * float64(length) / avgdl
	}
	f := float64(tf)
	return f * (idx.k1 + 1) / (f + idx.k1*norm)
}

// Contains reports whether id is indexed.
func (idx *Index) Contains(id core.ID) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[id]
	return ok
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// VocabularySize returns the number of distinct terms.
func (idx *Index) VocabularySize() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings)
}

// AverageLength returns the mean chunk length in terms, or 0 when empty.
func (idx *Index) AverageLength() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.entries) == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(len(idx.entries))
}

// Clear removes every entry.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[core.ID]*entry)
	idx.postings = make(map[string]map[core.ID]int)
	idx.totalLength = 0
}
