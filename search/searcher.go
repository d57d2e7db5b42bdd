package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/dense"
	"github.com/poiesic/hybridrag/fusion"
	"github.com/poiesic/hybridrag/session"
	"github.com/poiesic/hybridrag/sparse"
	"golang.org/x/sync/errgroup"
)

// DefaultCandidateMultiplier is how many hits per requested citation each
// index returns before fusion.
const DefaultCandidateMultiplier = 2

// Resolver loads the stored records a query needs for scoping and citations.
// storage.Store satisfies it.
type Resolver interface {
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)
	FindDocumentsByFilename(ctx context.Context, filenames ...string) ([]*core.Document, error)
	ChunkIDsByDocument(ctx context.Context, documentIDs ...core.ID) ([]core.ID, error)
}

// Searcher provides hybrid keyword and semantic search over the corpus.
// It holds no per-query state and is safe for concurrent use; callers that
// mutate the indices must serialize those mutations against Search.
type Searcher struct {
	sparse     *sparse.Index
	dense      *dense.Index
	registry   *session.Registry
	resolver   Resolver
	ranker     *fusion.Ranker
	multiplier int
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRanker replaces the default fusion ranker.
func WithRanker(ranker *fusion.Ranker) Option {
	return func(s *Searcher) error {
		if ranker != nil {
			s.ranker = ranker
		}
		return nil
	}
}

// WithCandidateMultiplier sets how many hits per citation each index fetches.
func WithCandidateMultiplier(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("%w: candidate multiplier must be at least 1, got %d", core.ErrInvalidConfiguration, n)
		}
		s.multiplier = n
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	sparseIndex *sparse.Index,
	denseIndex *dense.Index,
	registry *session.Registry,
	resolver Resolver,
	opts ...Option,
) (*Searcher, error) {
	if sparseIndex == nil {
		return nil, ErrSparseIndexRequired
	}
	if denseIndex == nil {
		return nil, ErrDenseIndexRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	s := &Searcher{
		sparse:     sparseIndex,
		dense:      denseIndex,
		registry:   registry,
		resolver:   resolver,
		multiplier: DefaultCandidateMultiplier,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.ranker == nil {
		s.ranker = fusion.NewRanker(fusion.WithLogger(s.logger))
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search runs one query and returns its citations in fused rank order.
func (s *Searcher) Search(ctx context.Context, opts *QueryOptions) (*core.RetrievalResult, error) {
	return s.SearchWithMonitor(ctx, opts, nil)
}

// SearchWithMonitor runs one query with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, opts *QueryOptions, monitor SearchMonitor) (*core.RetrievalResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	monitor.Start(opts)

	result := &core.RetrievalResult{
		Scope:     opts.Scope,
		SessionID: opts.SessionID,
		Citations: []core.Citation{},
	}

	// 1. Resolve the candidate set
	candidates, err := s.resolveScope(ctx, opts)
	if err != nil {
		return nil, err
	}
	monitor.AfterScopeResolution(opts.Scope, candidates)
	if candidates != nil && len(candidates) == 0 {
		s.logger.Debug("scope holds no chunks", "scope", opts.Scope, "session", opts.SessionID)
		monitor.Finish(result)
		return result, nil
	}

	// 2. Search both indices
	fetch := opts.TopK * s.multiplier
	var sparseHits, denseHits []core.Hit

	g, gctx := errgroup.WithContext(ctx)
	if opts.BM25Weight > 0 {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sparseHits = s.sparse.Search(opts.Question, candidates, fetch)
			return nil
		})
	}
	if opts.EmbeddingWeight > 0 {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits, err := s.dense.Search(opts.Vector, candidates, fetch)
			if err != nil {
				return err
			}
			denseHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("index search failed", "err", err)
		return nil, err
	}
	monitor.AfterSparseSearch(sparseHits)
	monitor.AfterDenseSearch(denseHits)

	// 3. Fuse
	fused, err := s.ranker.Merge(sparseHits, denseHits, opts.Weights(), opts.TopK)
	if err != nil {
		return nil, err
	}
	monitor.AfterFusion(fused)

	// 4. Build citations
	citations, err := s.cite(ctx, fused)
	if err != nil {
		return nil, err
	}
	result.Citations = citations

	s.logger.Debug("query complete",
		"scope", opts.Scope,
		"sparseHits", len(sparseHits),
		"denseHits", len(denseHits),
		"citations", len(citations))
	monitor.Finish(result)
	return result, nil
}

// resolveScope returns nil for global scope, otherwise the scope's chunk IDs.
func (s *Searcher) resolveScope(ctx context.Context, opts *QueryOptions) (core.IDSet, error) {
	switch opts.Scope {
	case core.ScopeSession:
		return s.registry.ChunkIDsFor(opts.SessionID)
	case core.ScopeDocuments:
		docs, err := s.resolver.FindDocumentsByFilename(ctx, opts.Filenames...)
		if err != nil {
			s.logger.Error("error looking up documents", "filenames", opts.Filenames, "err", err)
			return nil, err
		}
		if len(docs) == 0 {
			return core.IDSet{}, nil
		}
		docIDs := make([]core.ID, len(docs))
		for i, d := range docs {
			docIDs[i] = d.ID
		}
		chunkIDs, err := s.resolver.ChunkIDsByDocument(ctx, docIDs...)
		if err != nil {
			s.logger.Error("error listing document chunks", "documents", len(docIDs), "err", err)
			return nil, err
		}
		return core.NewIDSet(chunkIDs...), nil
	default:
		return nil, nil
	}
}

func (s *Searcher) cite(ctx context.Context, fused []core.FusedResult) ([]core.Citation, error) {
	if len(fused) == 0 {
		return []core.Citation{}, nil
	}

	ids := make([]core.ID, len(fused))
	for i, r := range fused {
		ids[i] = r.ChunkID
	}
	chunks, err := s.resolver.GetChunks(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving chunks", "chunkCount", len(ids), "err", err)
		return nil, err
	}
	chunkByID := make(map[core.ID]*core.Chunk, len(chunks))
	docSet := make(core.IDSet)
	for _, c := range chunks {
		chunkByID[c.ID] = c
		docSet[c.DocumentID] = struct{}{}
	}

	docs, err := s.resolver.GetDocuments(ctx, docSet.Sorted()...)
	if err != nil {
		s.logger.Error("error retrieving documents", "documentCount", len(docSet), "err", err)
		return nil, err
	}
	docByID := make(map[core.ID]*core.Document, len(docs))
	for _, d := range docs {
		docByID[d.ID] = d
	}

	citations := make([]core.Citation, 0, len(fused))
	for _, r := range fused {
		chunk, ok := chunkByID[r.ChunkID]
		if !ok {
			s.logger.Warn("indexed chunk missing from storage", "chunkID", r.ChunkID)
			continue
		}
		citation := core.Citation{
			ChunkID:     chunk.ID,
			DocumentID:  chunk.DocumentID,
			PageNumber:  chunk.PageNumber,
			Text:        chunk.Text,
			Score:       r.Score,
			SparseScore: r.SparseScore,
			DenseScore:  r.DenseScore,
		}
		if doc, ok := docByID[chunk.DocumentID]; ok {
			citation.Filename = doc.Filename
		}
		citations = append(citations, citation)
	}
	return citations, nil
}
