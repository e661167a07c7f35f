// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/corpus"
)

// Matcher ranks corpus offenses against a query and cross-references the
// best hit. A Matcher holds no per-query state and is safe for concurrent use.
type Matcher struct {
	embedder ai.Embedder
	topK     int
	prefix   string
	fallback string
	monitor  MatchMonitor
	logger   *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "matcher")
		return nil
	}
}

// WithTopK sets how many ranked candidates Match reports in Alternatives.
// Default is 1.
func WithTopK(k int) Option {
	return func(m *Matcher) error {
		if k < 1 {
			return ErrInvalidTopK
		}
		m.topK = k
		return nil
	}
}

// WithFallbackRef sets the reference returned when no successor matches.
// Default is DefaultFallbackRef.
func WithFallbackRef(ref string) Option {
	return func(m *Matcher) error {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("fallback reference cannot be empty")
		}
		m.fallback = ref
		return nil
	}
}

// WithSuccessorPrefix sets the prefix for bare numeric successor sections.
// Default is DefaultSuccessorPrefix.
func WithSuccessorPrefix(prefix string) Option {
	return func(m *Matcher) error {
		m.prefix = prefix
		return nil
	}
}

// WithMonitor sets the monitor used by Match and MatchTopK.
func WithMonitor(monitor MatchMonitor) Option {
	return func(m *Matcher) error {
		m.monitor = monitor
		return nil
	}
}

// NewMatcher creates a new matcher. The embedder must be the one (or the
// same model as the one) that embedded the corpus.
func NewMatcher(embedder ai.Embedder, opts ...Option) (*Matcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	m := &Matcher{
		embedder: embedder,
		topK:     1,
		prefix:   DefaultSuccessorPrefix,
		fallback: DefaultFallbackRef,
		monitor:  &noopMonitor{},
		logger:   slog.Default().With("component", "matcher"),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.monitor == nil {
		m.monitor = &noopMonitor{}
	}

	return m, nil
}

// Resolver returns a cross-reference resolver over successors using the
// matcher's prefix and fallback.
func (m *Matcher) Resolver(successors []*core.SuccessorRecord) *Resolver {
	return NewResolver(successors, SuccessorPrefix(m.prefix), FallbackRef(m.fallback))
}

// Match finds the offense closest to query and its successor section.
func (m *Matcher) Match(ctx context.Context, query string, idx *corpus.Index) (*core.MatchResult, error) {
	return m.MatchWithMonitor(ctx, query, idx, m.topK, m.monitor)
}

// MatchTopK is Match with k ranked candidates in Alternatives.
func (m *Matcher) MatchTopK(ctx context.Context, query string, idx *corpus.Index, k int) (*core.MatchResult, error) {
	return m.MatchWithMonitor(ctx, query, idx, k, m.monitor)
}

// MatchWithMonitor is MatchTopK reporting each stage to monitor.
func (m *Matcher) MatchWithMonitor(ctx context.Context, query string, idx *corpus.Index, k int, monitor MatchMonitor) (*core.MatchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	q, err := core.NewQuery(query)
	if err != nil {
		return nil, err
	}
	if idx == nil || idx.Len() == 0 {
		return nil, core.ErrEmptyCorpus
	}
	if !idx.Embedded() {
		return nil, corpus.ErrNotEmbedded
	}
	if k < 1 {
		return nil, ErrInvalidTopK
	}
	if model := m.embedder.Model(); model != idx.Model() {
		return nil, &core.EmbeddingError{
			Op:  "embed query",
			Err: fmt.Errorf("%w: query model %q, corpus model %q", core.ErrDimensionMismatch, model, idx.Model()),
		}
	}

	monitor.Start(q.Text)

	vector, err := m.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		m.logger.Error("error generating embedding for query", "err", err)
		return nil, &core.EmbeddingError{Op: "embed query", Err: err}
	}
	if _, err := core.ValidateDimensions(idx.Dimension(), vector); err != nil {
		return nil, &core.EmbeddingError{Op: "embed query", Err: err}
	}
	vector = corpus.NormalizeVector(vector)
	monitor.AfterQueryEmbedding(vector)

	candidates := rank(vector, idx.Offenses(), k)
	monitor.AfterRanking(candidates)

	best := candidates[0]
	successor, ref, fallback := m.Resolver(idx.Successors()).Resolve(best.Offense.Section)
	monitor.AfterCrossReference(successor, ref, fallback)

	result := &core.MatchResult{
		Query:        q.Text,
		Offense:      best.Offense,
		Score:        best.Score,
		Successor:    successor,
		SuccessorRef: ref,
		Fallback:     fallback,
		Alternatives: candidates,
	}
	monitor.Finish(result)

	m.logger.Debug("query matched",
		"section", best.Offense.Section,
		"score", best.Score,
		"successor", ref,
		"fallback", fallback)
	return result, nil
}

// rank scores every offense against vector and returns the best k in
// descending score order. Equal scores keep corpus order.
func rank(vector []float32, offenses []*core.OffenseRecord, k int) []core.Candidate {
	candidates := make([]core.Candidate, len(offenses))
	for i, offense := range offenses {
		candidates[i] = core.Candidate{
			Offense: offense,
			Score:   CosineSimilarity(vector, offense.Vector),
		}
	}

	slices.SortStableFunc(candidates, func(a, b core.Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	candidates = candidates[:min(k, len(candidates))]
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return slices.Clip(candidates)
}
