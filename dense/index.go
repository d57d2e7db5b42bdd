package dense

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/poiesic/hybridrag/core"
)

// DefaultMinSimilarity is the raw cosine similarity below which neighbours
// are dropped from results.
const DefaultMinSimilarity = 0.25

// NoThreshold disables the similarity threshold.
const NoThreshold = -1.0

// Index is an in-memory exhaustive vector index.
// It is safe for concurrent use.
type Index struct {
	mu            sync.RWMutex
	dims          int
	records       map[core.ID][]float64
	minSimilarity float64
	logger        *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithMinSimilarity sets the raw cosine similarity threshold within [-1,1].
func WithMinSimilarity(threshold float64) Option {
	return func(idx *Index) error {
		if threshold < -1 || threshold > 1 || math.IsNaN(threshold) {
			return fmt.Errorf("%w: min similarity must be within [-1,1], got %v", core.ErrInvalidConfiguration, threshold)
		}
		idx.minSimilarity = threshold
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

// New creates an empty index with no fixed dimensionality.
func New(opts ...Option) (*Index, error) {
	idx := &Index{
		records:       make(map[core.ID][]float64),
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "dense-index")
	return idx, nil
}

// Insert stores vector under id, replacing any previous record for id.
func (idx *Index) Insert(id core.ID, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for chunk %d", core.ErrDimensionMismatch, id)
	}
	normalized := normalize(vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dims != 0 && len(vector) != idx.dims {
		return fmt.Errorf("%w: chunk %d has %d dimensions, index has %d",
			core.ErrDimensionMismatch, id, len(vector), idx.dims)
	}
	idx.dims = len(vector)
	idx.records[id] = normalized
	return nil
}

// Remove drops id. Removing an unknown id is a no-op. The dimensionality stays
// fixed even when the index becomes empty.
func (idx *Index) Remove(id core.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.records, id)
}

// CheckDimensions reports whether vector could be inserted or queried.
func (idx *Index) CheckDimensions(vector []float32) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.checkLocked(vector)
}

func (idx *Index) checkLocked(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", core.ErrDimensionMismatch)
	}
	if idx.dims != 0 && len(vector) != idx.dims {
		return fmt.Errorf("%w: got %d dimensions, index has %d", core.ErrDimensionMismatch, len(vector), idx.dims)
	}
	return nil
}

// Search returns the k records most similar to query (all qualifying records
// when k <= 0), restricted to candidates when candidates is non-nil. Scores
// are (cos+1)/2; records whose raw cosine falls below the threshold are
// omitted. Equal scores are ordered by ascending chunk ID.
func (idx *Index) Search(query []float32, candidates core.IDSet, k int) ([]core.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.records) == 0 {
		return nil, nil
	}
	if err := idx.checkLocked(query); err != nil {
		return nil, err
	}
	q := normalize(query)

	var hits []core.Hit
	for id, v := range idx.records {
		if candidates != nil && !candidates.Contains(id) {
			continue
		}
		sim := dot(q, v)
		if sim < idx.minSimilarity {
			continue
		}
		hits = append(hits, core.Hit{ChunkID: id, Score: (sim + 1) / 2})
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

	idx.logger.Debug("dense search", "records", len(idx.records), "returned", len(hits))
	return hits, nil
}

// Vector returns a copy of the stored unit vector for id.
func (idx *Index) Vector(id core.ID) ([]float32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.records[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out, true
}

// Contains reports whether id is indexed.
func (idx *Index) Contains(id core.ID) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.records[id]
	return ok
}

// Dimensions returns the fixed vector length, or 0 before the first insert.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dims
}

// Len returns the number of stored records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Clear removes every record and releases the fixed dimensionality.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records = make(map[core.ID][]float64)
	idx.dims = 0
}

// normalize returns v scaled to unit length. A zero vector stays zero.
func normalize(v []float32) []float64 {
	var magnitude float64
	for _, x := range v {
		magnitude += float64(x) * float64(x)
	}
	magnitude = math.Sqrt(magnitude)

	out := make([]float64, len(v))
	if magnitude == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float64(x) / magnitude
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return min(max(sum, -1), 1)
}
