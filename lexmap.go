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


// Package lexmap wires the offense corpus, the matcher, the embedding cache
// and search history into a single Assistant.
//
// Example:
//
//	a, err := lexmap.Open("./lexmap_db")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	if _, err := a.LoadCorpus(ctx, "ipc_sections.csv", "bns_sections.csv"); err != nil {
//	    return err
//	}
//	result, err := a.Match(ctx, "someone stole my bicycle")
package lexmap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/ai/openai"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/corpus"
	"github.com/poiesic/lexmap/search"
	"github.com/poiesic/lexmap/session"
	"github.com/poiesic/lexmap/storage"
	"github.com/poiesic/lexmap/storage/badger"
)

// ErrCorpusNotLoaded is returned by operations that need a loaded corpus.
// It matches core.ErrEmptyCorpus.
var ErrCorpusNotLoaded = fmt.Errorf("%w: corpus not loaded", core.ErrEmptyCorpus)

type Assistant struct {
	backend     *badger.Backend
	cache       storage.EmbeddingCache
	history     storage.HistoryRepository
	provider    ai.AIProvider
	corpusOpts  []corpus.Option
	matcherOpts []search.Option
	logger      *slog.Logger

	mu      sync.RWMutex
	index   *corpus.Index
	matcher *search.Matcher
}

// Option configures an Assistant.
type Option func(*options)

type options struct {
	aiConfig    *ai.Config
	provider    ai.AIProvider
	inMemory    bool
	corpusOpts  []corpus.Option
	matcherOpts []search.Option
	logger      *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The Assistant takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInMemory keeps the cache and history in memory only.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithCorpusOptions adds options applied to every loaded corpus.
func WithCorpusOptions(opts ...corpus.Option) Option {
	return func(o *options) {
		o.corpusOpts = append(o.corpusOpts, opts...)
	}
}

// WithMatcherOptions adds options applied to every matcher.
func WithMatcherOptions(opts ...search.Option) Option {
	return func(o *options) {
		o.matcherOpts = append(o.matcherOpts, opts...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens (or creates) the store at filePath and connects the embedding
// provider. filePath is ignored with WithInMemory.
func Open(filePath string, opts ...Option) (*Assistant, error) {
	options := &options{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	cache, err := badger.NewEmbeddingCache(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	history, err := badger.NewHistoryRepository(backend)
	if err != nil {
		cache.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			history.Close()
			cache.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Assistant{
		backend:     backend,
		cache:       cache,
		history:     history,
		provider:    provider,
		corpusOpts:  append([]corpus.Option{corpus.WithLogger(logger)}, options.corpusOpts...),
		matcherOpts: append([]search.Option{search.WithLogger(logger)}, options.matcherOpts...),
		logger:      logger.With("component", "lexmap"),
	}, nil
}

func (a *Assistant) Close() error {
	// Close AI provider first
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}

	if err := a.history.Close(); err != nil {
		a.logger.Error("error closing history repository", "err", err)
		return err
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("error closing embedding cache", "err", err)
		return err
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// LoadCorpus reads the offense and successor tables, embeds the offenses
// through the embedding cache and makes the result the active corpus.
func (a *Assistant) LoadCorpus(ctx context.Context, offensePath, successorPath string, opts ...corpus.Option) (*corpus.Index, error) {
	all := make([]corpus.Option, 0, len(a.corpusOpts)+len(opts)+1)
	all = append(all, corpus.WithCache(a.cache))
	all = append(all, a.corpusOpts...)
	all = append(all, opts...)

	idx, err := corpus.LoadFiles(offensePath, successorPath, all...)
	if err != nil {
		return nil, err
	}
	if err := idx.EmbedAll(ctx, a.provider.Embedder()); err != nil {
		return nil, err
	}
	if err := a.SetIndex(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// SetIndex makes idx the active corpus. idx must already be embedded.
func (a *Assistant) SetIndex(idx *corpus.Index) error {
	if idx == nil || !idx.Embedded() {
		return corpus.ErrNotEmbedded
	}
	matcher, err := a.NewMatcher()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.index = idx
	a.matcher = matcher
	return nil
}

// Index returns the active corpus, or nil before LoadCorpus.
func (a *Assistant) Index() *corpus.Index {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index
}

// Match matches query against the active corpus.
func (a *Assistant) Match(ctx context.Context, query string) (*core.MatchResult, error) {
	return a.MatchTopK(ctx, query, 1)
}

// MatchTopK matches query and reports k ranked candidates.
func (a *Assistant) MatchTopK(ctx context.Context, query string, k int) (*core.MatchResult, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	a.mu.RLock()
	idx, matcher := a.index, a.matcher
	a.mu.RUnlock()
	if idx == nil {
		return nil, ErrCorpusNotLoaded
	}
	return matcher.MatchTopK(ctx, query, idx, k)
}

// Search is MatchTopK for interactive callers: a successful match is also
// recorded in search history under sessionID. An empty sessionID gets a
// fresh one. History failures are logged and the result is still returned.
func (a *Assistant) Search(ctx context.Context, sessionID, query string, k int) (*core.MatchResult, error) {
	result, err := a.MatchTopK(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	entry := core.NewHistoryEntry(sessionID, result, time.Now().UTC())
	if _, err := a.history.AddEntries(ctx, entry); err != nil {
		a.logger.Warn("failed to record search history", "session", sessionID, "err", err)
	}
	return result, nil
}

// CrossReference resolves a section identifier against the active corpus's
// successor table.
func (a *Assistant) CrossReference(section string) (*core.SuccessorRecord, string, bool, error) {
	a.mu.RLock()
	idx, matcher := a.index, a.matcher
	a.mu.RUnlock()
	if idx == nil {
		return nil, "", false, ErrCorpusNotLoaded
	}
	successor, ref, fallback := matcher.Resolver(idx.Successors()).Resolve(section)
	return successor, ref, fallback, nil
}

// NewMatcher creates a matcher bound to the assistant's embedder.
func (a *Assistant) NewMatcher(opts ...search.Option) (*search.Matcher, error) {
	all := append(append([]search.Option{}, a.matcherOpts...), opts...)
	return search.NewMatcher(a.provider.Embedder(), all...)
}

// NewSession starts a search session on the active corpus. Completed
// searches are recorded in the history store.
func (a *Assistant) NewSession(opts ...session.Option) (*session.Session, error) {
	a.mu.RLock()
	idx, matcher := a.index, a.matcher
	a.mu.RUnlock()
	if idx == nil {
		return nil, ErrCorpusNotLoaded
	}
	all := append([]session.Option{session.WithHistory(a.history)}, opts...)
	return session.New(matcher, idx, all...)
}

// RecentHistory returns up to limit recorded searches, most recent first.
func (a *Assistant) RecentHistory(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	return a.history.GetRecentEntries(ctx, limit)
}

// SessionHistory returns the searches recorded under sessionID, oldest first.
func (a *Assistant) SessionHistory(ctx context.Context, sessionID string) ([]*core.HistoryEntry, error) {
	return a.history.GetSessionEntries(ctx, sessionID)
}

// ClearEmbeddingCache drops every cached vector for the current embedding
// model and returns how many were removed. The active corpus keeps its
// vectors; the next LoadCorpus embeds from scratch.
func (a *Assistant) ClearEmbeddingCache(ctx context.Context) (int, error) {
	model := a.provider.Embedder().Model()
	n, err := a.cache.DeleteModel(ctx, model)
	if err != nil {
		return 0, fmt.Errorf("clear embedding cache for %q: %w", model, err)
	}
	a.logger.Info("embedding cache cleared", "model", model, "entries", n)
	return n, nil
}

// Embedder returns the embedder used for the corpus and queries.
func (a *Assistant) Embedder() ai.Embedder {
	return a.provider.Embedder()
}

// EmbeddingCache returns the persistent vector cache.
func (a *Assistant) EmbeddingCache() storage.EmbeddingCache {
	return a.cache
}

// HistoryRepository returns the search history store.
func (a *Assistant) HistoryRepository() storage.HistoryRepository {
	return a.history
}
