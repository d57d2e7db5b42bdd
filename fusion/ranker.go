package fusion

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/poiesic/hybridrag/core"
)

// Weights sets the relative influence of each index on the fused score.
// They need not sum to one.
type Weights struct {
	BM25      float64
	Embedding float64
}

// DefaultWeights gives both indices equal influence.
func DefaultWeights() Weights {
	return Weights{BM25: 0.5, Embedding: 0.5}
}

// Validate requires both weights to be finite and non-negative, and at least
// one to be positive.
func (w Weights) Validate() error {
	if w.BM25 < 0 || w.Embedding < 0 || math.IsNaN(w.BM25) || math.IsNaN(w.Embedding) ||
		math.IsInf(w.BM25, 0) || math.IsInf(w.Embedding, 0) {
		return fmt.Errorf("%w: weights must be non-negative, got bm25=%v embedding=%v",
			core.ErrInvalidWeights, w.BM25, w.Embedding)
	}
	if w.BM25 == 0 && w.Embedding == 0 {
		return fmt.Errorf("%w: bm25 and embedding weights cannot both be zero", core.ErrInvalidWeights)
	}
	return nil
}

// Normalized scales the weights to sum to one. Call Validate first.
func (w Weights) Normalized() Weights {
	total := w.BM25 + w.Embedding
	return Weights{BM25: w.BM25 / total, Embedding: w.Embedding / total}
}

// Ranker fuses per-index rankings. It holds no per-query state and is safe
// for concurrent use.
type Ranker struct {
	logger *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLogger sets a custom logger for the ranker.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRanker creates a Ranker.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "fusion")
	return r
}

type scored struct {
	norm float64
	rank int
}

// normalize min-max scales hits into [0,1] and records each chunk's 1-based
// rank. hits must already be in rank order. A single hit, or hits that all
// share one score, normalize to 1.
func normalize(hits []core.Hit) map[core.ID]scored {
	out := make(map[core.ID]scored, len(hits))
	if len(hits) == 0 {
		return out
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}
	span := hi - lo

	for i, h := range hits {
		if _, seen := out[h.ChunkID]; seen {
			continue
		}
		norm := 1.0
		if span > 0 {
			norm = (h.Score - lo) / span
		}
		out[h.ChunkID] = scored{norm: norm, rank: i + 1}
	}
	return out
}

// Merge fuses sparse and dense hits and returns at most k results (all when
// k <= 0), best first. Only a side with a positive weight contributes
// candidates. Equal fused scores are ordered by the better rank on a
// contributing side, then by ascending chunk ID.
func (r *Ranker) Merge(sparse, dense []core.Hit, weights Weights, k int) ([]core.FusedResult, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	w := weights.Normalized()

	sparseNorm := normalize(sparse)
	denseNorm := normalize(dense)

	candidates := make(core.IDSet)
	if w.BM25 > 0 {
		for id := range sparseNorm {
			candidates[id] = struct{}{}
		}
	}
	if w.Embedding > 0 {
		for id := range denseNorm {
			candidates[id] = struct{}{}
		}
	}

	results := make([]core.FusedResult, 0, len(candidates))
	for id := range candidates {
		s := sparseNorm[id]
		d := denseNorm[id]
		fused := w.BM25*s.norm + w.Embedding*d.norm
		results = append(results, core.FusedResult{
			ChunkID:     id,
			Score:       min(max(fused, 0), 1),
			SparseScore: s.norm,
			DenseScore:  d.norm,
			SparseRank:  s.rank,
			DenseRank:   d.rank,
		})
	}

	bestRank := func(fr core.FusedResult) int {
		best := math.MaxInt
		if w.BM25 > 0 && fr.SparseRank > 0 {
			best = min(best, fr.SparseRank)
		}
		if w.Embedding > 0 && fr.DenseRank > 0 {
			best = min(best, fr.DenseRank)
		}
		return best
	}
	slices.SortFunc(results, func(a, b core.FusedResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(bestRank(a), bestRank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}

	r.logger.Debug("fused rankings",
		"sparse", len(sparse), "dense", len(dense),
		"candidates", len(candidates), "returned", len(results))
	return results, nil
}
