package search

import "github.com/poiesic/lexmap/core"

// MatchMonitor provides hooks to observe the match process.
// Implement this interface to trace intermediate steps of a match.
type MatchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterRanking(candidates []core.Candidate)
	AfterCrossReference(successor *core.SuccessorRecord, ref string, fallback bool)
	Finish(result *core.MatchResult)
}

// noopMonitor is a no-op implementation of MatchMonitor
type noopMonitor struct{}

var _ MatchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                                {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)                               {}
func (n *noopMonitor) AfterRanking(_ []core.Candidate)                               {}
func (n *noopMonitor) AfterCrossReference(_ *core.SuccessorRecord, _ string, _ bool) {}
func (n *noopMonitor) Finish(_ *core.MatchResult)                                    {}
