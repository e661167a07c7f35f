package core

import (
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "theft of movable property",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "Whoever, intending to take dishonestly any movable property out of the possession of any person without that person's consent, moves that property",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("all-minilm|theft")
	id2 := IDFromContent("nomic-embed-text|theft")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestMatchResult_Label(t *testing.T) {
	tests := []struct {
		name   string
		result *MatchResult
		want   string
	}{
		{
			name: "matched offense",
			result: &MatchResult{
				Offense: &OffenseRecord{Section: "379", Offense: "Theft"},
			},
			want: "Theft (Sec 379)",
		},
		{
			name:   "no offense",
			result: &MatchResult{},
			want:   "",
		},
		{
			name:   "nil result",
			result: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.result.Label()
			if got != tt.want {
				t.Errorf("MatchResult.Label() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewHistoryEntry(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	result := &MatchResult{
		Query:        "someone stole my bicycle",
		Offense:      &OffenseRecord{Section: "379", Offense: "Theft"},
		Score:        0.82,
		SuccessorRef: "BNS 303",
	}

	entry := NewHistoryEntry("session-1", result, at)
	if entry.Section != "379" || entry.Offense != "Theft" {
		t.Fatalf("unexpected entry fields: %+v", entry)
	}
	if entry.SuccessorRef != "BNS 303" {
		t.Errorf("SuccessorRef = %q, want %q", entry.SuccessorRef, "BNS 303")
	}
	if entry.Id == 0 {
		t.Error("expected non-zero ID")
	}

	again := NewHistoryEntry("session-1", result, at)
	if again.Id != entry.Id {
		t.Error("expected deterministic ID for identical input")
	}

	later := NewHistoryEntry("session-1", result, at.Add(time.Second))
	if later.Id == entry.Id {
		t.Error("expected different ID for a different timestamp")
	}
}
