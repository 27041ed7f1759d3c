package search

import "github.com/corvid-labs/sectra/core"

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during search.
type RetrievalMonitor interface {
	Start(query string)
	AfterLexicalScan(terms []string, hits int)
	AfterVectorSearch(hits int)
	LexicalHit(result *core.SearchResult)
	VectorHit(result *core.SearchResult)
	HybridHit(result *core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                       {}
func (n *noopMonitor) AfterLexicalScan(_ []string, _ int)   {}
func (n *noopMonitor) AfterVectorSearch(_ int)              {}
func (n *noopMonitor) LexicalHit(_ *core.SearchResult)      {}
func (n *noopMonitor) VectorHit(_ *core.SearchResult)       {}
func (n *noopMonitor) HybridHit(_ *core.SearchResult)       {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)        {}
