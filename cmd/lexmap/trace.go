package main

import (
	"fmt"
	"io"

	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/search"
)

// traceMonitor prints each matching stage for --verbose.
type traceMonitor struct {
	w io.Writer
}

var _ search.MatchMonitor = (*traceMonitor)(nil)

func (m *traceMonitor) Start(query string) {
	fmt.Fprintf(m.w, "query: %q\n", query)
}

func (m *traceMonitor) AfterQueryEmbedding(vector []float32) {
	fmt.Fprintf(m.w, "embedded query: %d dimensions\n", len(vector))
}

func (m *traceMonitor) AfterRanking(candidates []core.Candidate) {
	for _, c := range candidates {
		fmt.Fprintf(m.w, "  #%d %s %s (%.4f)\n", c.Rank, c.Offense.Section, c.Offense.Offense, c.Score)
	}
}

func (m *traceMonitor) AfterCrossReference(successor *core.SuccessorRecord, ref string, fallback bool) {
	if fallback {
		fmt.Fprintf(m.w, "cross-reference: no successor, using %s\n", ref)
		return
	}
	fmt.Fprintf(m.w, "cross-reference: %s\n", ref)
}

func (m *traceMonitor) Finish(result *core.MatchResult) {
	fmt.Fprintf(m.w, "matched %s\n", result.Label())
}
