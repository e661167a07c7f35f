package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/storage"
)

// EmbeddingCache implements storage.EmbeddingCache for BadgerDB.
type EmbeddingCache struct {
	backend *Backend
}

var _ storage.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a new EmbeddingCache.
func NewEmbeddingCache(backend *Backend) (*EmbeddingCache, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &EmbeddingCache{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (c *EmbeddingCache) Close() error {
	return nil
}

// GetVectors looks up cached vectors by content ID.
func (c *EmbeddingCache) GetVectors(ctx context.Context, model string, ids ...core.ID) (map[core.ID][]float32, error) {
	found := make(map[core.ID][]float32, len(ids))
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := tx.Get(makeEmbeddingKey(model, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				vector, err := storage.UnmarshalVector(val)
				if err != nil {
					return err
				}
				found[id] = vector
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// PutVectors stores vectors in a single batch.
func (c *EmbeddingCache) PutVectors(ctx context.Context, model string, vectors map[core.ID][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	wb := c.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for id, vector := range vectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(makeEmbeddingKey(model, id), storage.MarshalVector(vector)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// DeleteModel drops every vector cached for model.
func (c *EmbeddingCache) DeleteModel(ctx context.Context, model string) (int, error) {
	prefix := makeModelPrefix(model)
	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := c.backend.db.DropPrefix(prefix); err != nil {
		return 0, err
	}
	c.backend.logger.Debug("dropped cached vectors", "model", model, "count", count)
	return count, nil
}
