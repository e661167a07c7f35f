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


package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier used for cache keys and history entries.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// OffenseRecord is one row of the offense (IPC) reference table.
// Records are immutable once the corpus has been embedded.
type OffenseRecord struct {
	Section     string    // Section identifier, e.g. "379" or "498A"
	Offense     string    // Short offense name
	Description string    // Offense description text
	Punishment  string    // Punishment text
	Vector      []float32 // Normalized embedding (populated once by EmbedAll)
}

// SuccessorRecord is one row of the successor (BNS) reference table.
type SuccessorRecord struct {
	Section       string // Successor section identifier, e.g. "BNS 103" or "103"
	Description   string
	LegacySection string // Optional old section this one replaces
}

// Query is a single free-text matching request. Build one with NewQuery.
type Query struct {
	Text string // Trimmed, never blank
}

// NewQuery validates text and returns it trimmed as a Query.
func NewQuery(text string) (Query, error) {
	if err := ValidateQuery(text); err != nil {
		return Query{}, err
	}
	return Query{Text: strings.TrimSpace(text)}, nil
}

// Candidate is one ranked corpus hit.
type Candidate struct {
	Offense *OffenseRecord
	Score   float32 // Cosine similarity in [-1, 1]
	Rank    int     // One-based position after ranking
}

// MatchResult is the outcome of matching one query against the corpus.
type MatchResult struct {
	Query   string
	Offense *OffenseRecord
	Score   float32

	// Successor is nil when the cross-reference fell back to the default.
	Successor    *SuccessorRecord
	SuccessorRef string
	Fallback     bool

	// Alternatives holds the top-k candidates, best first. Alternatives[0]
	// is always the matched offense.
	Alternatives []Candidate
}

// Label returns the display form used in search history: "<offense> (Sec <section>)".
func (r *MatchResult) Label() string {
	if r == nil || r.Offense == nil {
		return ""
	}
	return fmt.Sprintf("%s (Sec %s)", r.Offense.Offense, r.Offense.Section)
}

// HistoryEntry records a completed search. History is owned by the caller,
// never by the matcher.
type HistoryEntry struct {
	Id           ID
	SessionID    string
	Query        string
	Section      string
	Offense      string
	SuccessorRef string
	Score        float32
	Timestamp    time.Time
}

// NewHistoryEntry builds an entry from a match result.
func NewHistoryEntry(sessionID string, result *MatchResult, at time.Time) *HistoryEntry {
	entry := &HistoryEntry{
		SessionID:    sessionID,
		Query:        result.Query,
		SuccessorRef: result.SuccessorRef,
		Score:        result.Score,
		Timestamp:    at,
	}
	if result.Offense != nil {
		entry.Section = result.Offense.Section
		entry.Offense = result.Offense.Offense
	}
	entry.Id = IDFromContent(fmt.Sprintf("%s|%d|%s", sessionID, at.UnixMicro(), result.Query))
	return entry
}
