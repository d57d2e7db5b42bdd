package search

import (
	"github.com/poiesic/hybridrag/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// Hooks are called from the goroutine that called Search.
type SearchMonitor interface {
	Start(opts *QueryOptions)
	// AfterScopeResolution receives the candidate set; nil means global scope.
	AfterScopeResolution(scope core.SearchScope, candidates core.IDSet)
	AfterSparseSearch(hits []core.Hit)
	AfterDenseSearch(hits []core.Hit)
	AfterFusion(results []core.FusedResult)
	Finish(result *core.RetrievalResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *QueryOptions)                                  {}
func (n *noopMonitor) AfterScopeResolution(_ core.SearchScope, _ core.IDSet) {}
func (n *noopMonitor) AfterSparseSearch(_ []core.Hit)                         {}
func (n *noopMonitor) AfterDenseSearch(_ []core.Hit)                          {}
func (n *noopMonitor) AfterFusion(_ []core.FusedResult)                       {}
func (n *noopMonitor) Finish(_ *core.RetrievalResult)                         {}
