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


package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/corpus"
	"github.com/poiesic/lexmap/storage"
)

// DefaultRecentSize is how many recent searches Recent returns.
const DefaultRecentSize = 3

// State is the position of a session in the search flow.
type State int

const (
	// AwaitingQuery means no result is shown and a query may be submitted.
	AwaitingQuery State = iota
	// HasResult means the last submitted query produced a result.
	HasResult
)

func (s State) String() string {
	switch s {
	case AwaitingQuery:
		return "awaiting-query"
	case HasResult:
		return "has-result"
	default:
		return "unknown"
	}
}

// Matcher is the part of search.Matcher a session needs.
type Matcher interface {
	Match(ctx context.Context, query string, idx *corpus.Index) (*core.MatchResult, error)
}

// Session holds the state of one user's searches. All methods are safe for
// concurrent use.
type Session struct {
	id         string
	matcher    Matcher
	index      *corpus.Index
	history    storage.HistoryRepository
	recentSize int
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	query  string
	result *core.MatchResult
	labels []string
}

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithHistory persists every successful search to repo.
func WithHistory(repo storage.HistoryRepository) Option {
	return func(s *Session) error {
		s.history = repo
		return nil
	}
}

// WithRecentSize sets how many recent searches Recent returns.
// Values below 1 fall back to DefaultRecentSize.
func WithRecentSize(n int) Option {
	return func(s *Session) error {
		if n < 1 {
			n = DefaultRecentSize
		}
		s.recentSize = n
		return nil
	}
}

// WithID sets the session identifier instead of generating one.
func WithID(id string) Option {
	return func(s *Session) error {
		if id != "" {
			s.id = id
		}
		return nil
	}
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// New creates a session in the AwaitingQuery state.
func New(matcher Matcher, idx *corpus.Index, opts ...Option) (*Session, error) {
	if matcher == nil {
		return nil, ErrMatcherRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	s := &Session{
		id:         uuid.NewString(),
		matcher:    matcher,
		index:      idx,
		recentSize: DefaultRecentSize,
		now:        time.Now,
		logger:     slog.Default(),
		state:      AwaitingQuery,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "session", "session", s.id)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the current result, or nil while awaiting a query.
func (s *Session) Result() *core.MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Query returns the query that produced the current result.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Submit matches query and moves the session to HasResult. On error the
// session returns to AwaitingQuery with no result.
func (s *Session) Submit(ctx context.Context, query string) (*core.MatchResult, error) {
	result, err := s.matcher.Match(ctx, query, s.index)

	s.mu.Lock()
	if err != nil {
		s.state = AwaitingQuery
		s.query = ""
		s.result = nil
		s.mu.Unlock()
		return nil, err
	}
	s.state = HasResult
	s.query = result.Query
	s.result = result
	if label := result.Label(); !slices.Contains(s.labels, label) {
		s.labels = append(s.labels, label)
	}
	s.mu.Unlock()

	s.persist(ctx, result)
	return result, nil
}

// Reset starts a new search. The current result is cleared; recent
// searches are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = AwaitingQuery
	s.query = ""
	s.result = nil
}

// Recent returns up to the configured number of most recent distinct
// search labels, oldest first.
func (s *Session) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := max(len(s.labels)-s.recentSize, 0)
	return slices.Clone(s.labels[start:])
}

// Entries returns the persisted history of this session, oldest first.
// Without a history repository it returns nil.
func (s *Session) Entries(ctx context.Context) ([]*core.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.GetSessionEntries(ctx, s.id)
}

// persist stores result in the history repository. History is secondary to
// the search itself, so failures are logged rather than returned.
func (s *Session) persist(ctx context.Context, result *core.MatchResult) {
	if s.history == nil {
		return
	}
	entry := core.NewHistoryEntry(s.id, result, s.now().UTC())
	if _, err := s.history.AddEntries(ctx, entry); err != nil {
		s.logger.Warn("failed to record search history", "err", err)
	}
}
