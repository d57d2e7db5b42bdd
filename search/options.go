package search

import (
	"fmt"
	"strings"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/fusion"
)

// DefaultTopK is the number of citations returned when no limit is given.
const DefaultTopK = 5

// QueryOptions describes one retrieval request.
type QueryOptions struct {
	// Question is the natural-language query scored by BM25.
	Question string

	// Vector is the question's embedding. It may be nil only when
	// EmbeddingWeight is zero.
	Vector []float32

	// TopK caps the number of citations returned.
	TopK int

	BM25Weight      float64
	EmbeddingWeight float64

	Scope     core.SearchScope
	SessionID string   // Required by ScopeSession
	Filenames []string // Required by ScopeDocuments
}

// QueryOption is a functional option for configuring QueryOptions.
type QueryOption func(*QueryOptions)

// WithTopK sets the maximum number of citations.
func WithTopK(k int) QueryOption {
	return func(o *QueryOptions) {
		o.TopK = k
	}
}

// WithWeights sets the fusion weights. They need not sum to one.
func WithWeights(bm25, embedding float64) QueryOption {
	return func(o *QueryOptions) {
		o.BM25Weight = bm25
		o.EmbeddingWeight = embedding
	}
}

// WithSession restricts the query to the chunks of one upload session.
func WithSession(sessionID string) QueryOption {
	return func(o *QueryOptions) {
		o.Scope = core.ScopeSession
		o.SessionID = sessionID
	}
}

// WithDocuments restricts the query to the chunks of the named documents.
func WithDocuments(filenames ...string) QueryOption {
	return func(o *QueryOptions) {
		o.Scope = core.ScopeDocuments
		o.Filenames = append([]string(nil), filenames...)
	}
}

// NewQueryOptions creates global-scope options with default limits and
// equal weights, then applies opts.
func NewQueryOptions(question string, vector []float32, opts ...QueryOption) *QueryOptions {
	weights := fusion.DefaultWeights()
	o := &QueryOptions{
		Question:        question,
		Vector:          vector,
		TopK:            DefaultTopK,
		BM25Weight:      weights.BM25,
		EmbeddingWeight: weights.Embedding,
		Scope:           core.ScopeGlobal,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Weights returns the fusion weights.
func (o *QueryOptions) Weights() fusion.Weights {
	return fusion.Weights{BM25: o.BM25Weight, Embedding: o.EmbeddingWeight}
}

// Validate rejects malformed requests before any index is touched.
func (o *QueryOptions) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: options are nil", core.ErrInvalidQueryOptions)
	}
	if strings.TrimSpace(o.Question) == "" {
		return core.ErrEmptyQuery
	}
	if o.TopK <= 0 {
		return fmt.Errorf("%w: top k must be positive, got %d", core.ErrInvalidQueryOptions, o.TopK)
	}
	if err := o.Weights().Validate(); err != nil {
		return err
	}
	if o.EmbeddingWeight > 0 && len(o.Vector) == 0 {
		return fmt.Errorf("%w: a question vector is required when the embedding weight is positive",
			core.ErrInvalidQueryOptions)
	}

	switch o.Scope {
	case core.ScopeGlobal:
		if o.SessionID != "" {
			return fmt.Errorf("%w: session id %q given for global scope", core.ErrInvalidQueryOptions, o.SessionID)
		}
		if len(o.Filenames) > 0 {
			return fmt.Errorf("%w: filenames given for global scope", core.ErrInvalidQueryOptions)
		}
	case core.ScopeSession:
		if o.SessionID == "" {
			return fmt.Errorf("%w: session scope requires a session id", core.ErrInvalidQueryOptions)
		}
		if len(o.Filenames) > 0 {
			return fmt.Errorf("%w: filenames given for session scope", core.ErrInvalidQueryOptions)
		}
	case core.ScopeDocuments:
		if len(o.Filenames) == 0 {
			return fmt.Errorf("%w: documents scope requires at least one filename", core.ErrInvalidQueryOptions)
		}
		if o.SessionID != "" {
			return fmt.Errorf("%w: session id %q given for documents scope", core.ErrInvalidQueryOptions, o.SessionID)
		}
	default:
		return fmt.Errorf("%w: unknown scope %d", core.ErrInvalidQueryOptions, o.Scope)
	}
	return nil
}
