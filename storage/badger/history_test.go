package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_AddAndRecent(t *testing.T) {
	cache, history, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		history.Close()
		cache.Close()
		backend.Close()
	}()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	entries := []*core.HistoryEntry{
		{SessionID: "s1", Query: "bike stolen", Section: "379", Offense: "Theft", Timestamp: now.Add(-2 * time.Minute)},
		{SessionID: "s1", Query: "beaten up", Section: "323", Offense: "Voluntarily causing hurt", Timestamp: now.Add(-1 * time.Minute)},
		{SessionID: "s2", Query: "house broken into", Section: "457", Offense: "Lurking house-trespass", Timestamp: now},
	}

	added, err := history.AddEntries(ctx, entries...)
	require.NoError(t, err)
	require.Len(t, added, 3)
	for _, entry := range added {
		assert.NotZero(t, entry.Id)
	}

	recent, err := history.GetRecentEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "457", recent[0].Section)
	assert.Equal(t, "323", recent[1].Section)
	assert.Equal(t, now, recent[0].Timestamp)

	all, err := history.GetRecentEntries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = history.GetRecentEntries(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestHistoryRepository_SessionEntries(t *testing.T) {
	cache, history, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		history.Close()
		cache.Close()
		backend.Close()
	}()

	ctx := context.Background()
	now := time.Now().UTC()
	_, err = history.AddEntries(ctx,
		&core.HistoryEntry{SessionID: "s1", Query: "second", Section: "2", Timestamp: now.Add(time.Second)},
		&core.HistoryEntry{SessionID: "s2", Query: "other", Section: "9", Timestamp: now},
		&core.HistoryEntry{SessionID: "s1", Query: "first", Section: "1", Timestamp: now},
	)
	require.NoError(t, err)

	entries, err := history.GetSessionEntries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Query)
	assert.Equal(t, "second", entries[1].Query)

	entries, err = history.GetSessionEntries(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryRepository_DefaultsTimestamp(t *testing.T) {
	cache, history, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		history.Close()
		cache.Close()
		backend.Close()
	}()

	before := time.Now().UTC()
	added, err := history.AddEntries(context.Background(), &core.HistoryEntry{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	assert.False(t, added[0].Timestamp.Before(before))
}
