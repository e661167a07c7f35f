package storage

import (
	"context"

	"github.com/poiesic/lexmap/core"
)

// EmbeddingCache persists embedding vectors keyed by model and content ID.
// Vectors from different models never share keys.
type EmbeddingCache interface {
	// GetVectors returns the cached vectors for the given content IDs.
	// Missing IDs are simply absent from the returned map.
	GetVectors(ctx context.Context, model string, ids ...core.ID) (map[core.ID][]float32, error)

	// PutVectors stores vectors for the given content IDs, replacing any
	// existing entries for the same model.
	PutVectors(ctx context.Context, model string, vectors map[core.ID][]float32) error

	// DeleteModel removes every cached vector for a model and returns the
	// number of entries removed.
	DeleteModel(ctx context.Context, model string) (int, error)

	// Close releases resources held by the cache.
	Close() error
}

// HistoryRepository stores completed searches. History belongs to the
// caller; the matcher never reads it.
type HistoryRepository interface {
	// AddEntries stores one or more history entries.
	// Entries with ID=0 get a content-derived ID.
	AddEntries(ctx context.Context, entries ...*core.HistoryEntry) ([]*core.HistoryEntry, error)

	// GetRecentEntries returns up to limit entries, most recent first.
	GetRecentEntries(ctx context.Context, limit int) ([]*core.HistoryEntry, error)

	// GetSessionEntries returns all entries of one session, oldest first.
	GetSessionEntries(ctx context.Context, sessionID string) ([]*core.HistoryEntry, error)

	// Close releases resources held by the repository.
	Close() error
}
