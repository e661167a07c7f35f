package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/storage"
)

// HistoryRepository implements storage.HistoryRepository for BadgerDB.
type HistoryRepository struct {
	backend *Backend
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(backend *Backend) (*HistoryRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &HistoryRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *HistoryRepository) Close() error {
	return nil
}

// AddEntries stores entries and indexes them by session.
func (r *HistoryRepository) AddEntries(ctx context.Context, entries ...*core.HistoryEntry) ([]*core.HistoryEntry, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.Timestamp.IsZero() {
				entry.Timestamp = time.Now().UTC()
			}
			if entry.Id == 0 {
				entry.Id = core.IDFromContent(fmt.Sprintf("%s|%d|%s", entry.SessionID, entry.Timestamp.UnixMicro(), entry.Query))
			}

			key := makeHistoryKey(entry.Timestamp, entry.Id)
			if err := tx.Set(key, storage.MarshalHistoryEntry(entry)); err != nil {
				return err
			}
			sessionKey := makeSessionKey(entry.SessionID, entry.Timestamp, entry.Id)
			if err := tx.Set(sessionKey, key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetRecentEntries walks the history index backwards from the newest entry.
func (r *HistoryRepository) GetRecentEntries(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	var results []*core.HistoryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the largest possible key so reverse iteration starts at the end
		seekKey := append([]byte(historyPrefix), bytes.Repeat([]byte{0xff}, 16)...)
		for iter.Seek(seekKey); iter.Valid() && len(results) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := readEntry(iter.Item())
			if err != nil {
				return err
			}
			results = append(results, entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetSessionEntries returns one session's entries in submission order.
func (r *HistoryRepository) GetSessionEntries(ctx context.Context, sessionID string) ([]*core.HistoryEntry, error) {
	var results []*core.HistoryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSessionPrefix(sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			primary, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := tx.Get(primary)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			entry, err := readEntry(item)
			if err != nil {
				return err
			}
			// Session hashes can collide; the stored ID is authoritative
			if entry.SessionID != sessionID {
				continue
			}
			results = append(results, entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func readEntry(item *badger.Item) (*core.HistoryEntry, error) {
	var entry *core.HistoryEntry
	err := item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalHistoryEntry(val)
		return err
	})
	return entry, err
}
