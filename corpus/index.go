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


package corpus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/storage"
)

// Index holds the offense and successor tables and, once EmbedAll has run,
// one unit-length vector per offense.
type Index struct {
	offenses   []*core.OffenseRecord
	successors []*core.SuccessorRecord
	bySection  map[string]*core.OffenseRecord

	field            TextField
	batchSize        int
	poolSize         int
	cache            storage.EmbeddingCache
	progress         io.Writer
	progressInterval int
	logger           *slog.Logger

	// embedMu serializes EmbedAll. Readers never take it: model and
	// dimension are written once, before embedded is set.
	embedMu   sync.Mutex
	embedded  atomic.Bool
	model     string
	dimension int
}

// New builds an Index from records already in memory.
func New(offenses []*core.OffenseRecord, successors []*core.SuccessorRecord, opts ...Option) (*Index, error) {
	idx := &Index{
		offenses:   offenses,
		successors: successors,
		bySection:  make(map[string]*core.OffenseRecord, len(offenses)),
		field:      FieldDescription,
		batchSize:  DefaultBatchSize,
		poolSize:   defaultPoolSize(),
		logger:     slog.Default().With("component", "corpus"),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	for i, record := range offenses {
		if err := core.ValidateOffense(record); err != nil {
			if record == nil {
				return nil, &core.DataLoadError{Table: offenseTable, Err: fmt.Errorf("row %d: %w", i+1, err)}
			}
			idx.logger.Warn("offense row has no section", "row", i+1, "offense", record.Offense)
			continue
		}
		key := strings.TrimSpace(record.Section)
		if _, seen := idx.bySection[key]; !seen {
			idx.bySection[key] = record
		}
	}
	for i, record := range successors {
		if record == nil {
			return nil, &core.DataLoadError{Table: successorTable, Err: fmt.Errorf("row %d: record is nil", i+1)}
		}
	}

	idx.logger.Debug("corpus loaded", "offenses", len(offenses), "successors", len(successors))
	return idx, nil
}

// Offenses returns the offense records in table order.
func (idx *Index) Offenses() []*core.OffenseRecord {
	return idx.offenses
}

// Successors returns the successor records in table order.
func (idx *Index) Successors() []*core.SuccessorRecord {
	return idx.successors
}

// Len returns the number of offense records.
func (idx *Index) Len() int {
	return len(idx.offenses)
}

// Embedded reports whether EmbedAll has completed.
func (idx *Index) Embedded() bool {
	return idx.embedded.Load()
}

// Model returns the name of the model that produced the offense vectors,
// or "" before EmbedAll.
func (idx *Index) Model() string {
	if !idx.embedded.Load() {
		return ""
	}
	return idx.model
}

// Dimension returns the offense vector length, or 0 before EmbedAll.
func (idx *Index) Dimension() int {
	if !idx.embedded.Load() {
		return 0
	}
	return idx.dimension
}

// TextField returns the offense field used for embedding.
func (idx *Index) TextField() TextField {
	return idx.field
}

// Offense looks up the first offense with the given section identifier.
func (idx *Index) Offense(section string) (*core.OffenseRecord, bool) {
	record, ok := idx.bySection[strings.TrimSpace(section)]
	return record, ok
}

// EmbedAll computes one vector per offense. Calling it again with an
// embedder for the same model does nothing. An index embedded with another
// model is rejected with ErrAlreadyEmbedded; load a fresh Index instead.
// On error the index stays unembedded.
//
// When the cache has vectors for the model, the first offense is embedded
// anyway and cached vectors of a different length are treated as misses.
func (idx *Index) EmbedAll(ctx context.Context, embedder ai.Embedder) error {
	if embedder == nil {
		return ErrEmbedderRequired
	}

	idx.embedMu.Lock()
	defer idx.embedMu.Unlock()

	model := embedder.Model()
	if idx.embedded.Load() {
		if idx.model == model {
			idx.logger.Debug("corpus already embedded", "model", model)
			return nil
		}
		return fmt.Errorf("%w: embedded with %q, asked for %q", ErrAlreadyEmbedded, idx.model, model)
	}
	if len(idx.offenses) == 0 {
		return core.ErrEmptyCorpus
	}

	texts := make([]string, len(idx.offenses))
	ids := make([]core.ID, len(idx.offenses))
	for i, record := range idx.offenses {
		texts[i] = idx.embeddingText(record)
		ids[i] = core.IDFromContent(texts[i])
	}

	vectors := make([][]float32, len(texts))
	cached := idx.lookupCache(ctx, model, ids, vectors)

	var reference []float32
	if cached > 0 {
		out, err := embedder.EmbedTexts(ctx, texts[:1])
		if err != nil {
			return &core.EmbeddingError{Op: "embed corpus", Err: err}
		}
		if len(out) != 1 || len(out[0]) == 0 {
			return &core.EmbeddingError{
				Op:  "embed corpus",
				Err: fmt.Errorf("%w: expected 1 vector, got %d", core.ErrDimensionMismatch, len(out)),
			}
		}
		reference = out[0]
		if stale := dropStale(vectors, len(reference)); stale > 0 {
			idx.logger.Warn("cached vectors do not match the model's dimension",
				"model", model, "stale", stale, "dimension", len(reference))
			cached -= stale
		}
		if vectors[0] != nil {
			cached--
		}
		vectors[0] = nil
	}

	pending := make([]int, 0, len(texts)-cached)
	for i, v := range vectors {
		if v == nil {
			pending = append(pending, i)
		}
	}

	idx.logger.Info("embedding corpus",
		"model", model,
		"field", idx.field.String(),
		"offenses", len(texts),
		"cached", cached,
		"pending", len(pending))

	if reference != nil {
		vectors[0] = reference
	}
	remaining := pending
	if reference != nil {
		// pending[0] is the offense embedded above.
		remaining = pending[1:]
	}
	if len(remaining) > 0 {
		if err := idx.embedPending(ctx, embedder, texts, remaining, vectors); err != nil {
			return err
		}
	}

	dim, err := core.ValidateDimensions(0, vectors...)
	if err != nil {
		return &core.EmbeddingError{Op: "embed corpus", Err: err}
	}

	// Cached vectors were normalized before they were stored.
	fresh := make(map[core.ID][]float32, len(pending))
	for _, i := range pending {
		vectors[i] = NormalizeVector(vectors[i])
		fresh[ids[i]] = vectors[i]
	}
	idx.storeCache(ctx, model, fresh)

	for i, record := range idx.offenses {
		record.Vector = vectors[i]
	}
	idx.model = model
	idx.dimension = dim
	idx.embedded.Store(true)

	idx.logger.Info("corpus embedded", "model", model, "dimension", dim)
	return nil
}

// dropStale clears cached vectors whose length is not dim and returns how
// many were cleared.
func dropStale(vectors [][]float32, dim int) int {
	stale := 0
	for i, v := range vectors {
		if v != nil && len(v) != dim {
			vectors[i] = nil
			stale++
		}
	}
	return stale
}

// embedPending fans batches of pending texts out to a worker pool. Each
// batch writes its vectors back by position.
func (idx *Index) embedPending(ctx context.Context, embedder ai.Embedder, texts []string, pending []int, vectors [][]float32) error {
	pool, err := ants.NewPool(idx.poolSize)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tracker *ProgressTracker
	if idx.progress != nil {
		tracker = NewProgressTracker(idx.progress, len(pending), idx.progressInterval)
		tracker.Start()
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(pending); start += idx.batchSize {
		batch := pending[start:min(start+idx.batchSize, len(pending))]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			batchTexts := make([]string, len(batch))
			for j, i := range batch {
				batchTexts[j] = texts[i]
			}
			out, err := embedder.EmbedTexts(ctx, batchTexts)
			if err != nil {
				fail(&core.EmbeddingError{Op: "embed corpus", Err: err})
				return
			}
			if len(out) != len(batch) {
				fail(&core.EmbeddingError{
					Op:  "embed corpus",
					Err: fmt.Errorf("%w: expected %d vectors, got %d", core.ErrDimensionMismatch, len(batch), len(out)),
				})
				return
			}
			for j, i := range batch {
				vectors[i] = out[j]
			}
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding batch: %w", submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := parent.Err(); err != nil {
		return &core.EmbeddingError{Op: "embed corpus", Err: err}
	}
	if tracker != nil {
		tracker.Finish()
	}
	return nil
}

// lookupCache fills vectors from the cache and returns how many were found.
// Cache failures are logged and treated as misses.
func (idx *Index) lookupCache(ctx context.Context, model string, ids []core.ID, vectors [][]float32) int {
	if idx.cache == nil {
		return 0
	}
	found, err := idx.cache.GetVectors(ctx, model, ids...)
	if err != nil {
		idx.logger.Warn("embedding cache lookup failed", "model", model, "err", err)
		return 0
	}
	hits := 0
	for i, id := range ids {
		if v, ok := found[id]; ok && len(v) > 0 {
			vectors[i] = v
			hits++
		}
	}
	return hits
}

func (idx *Index) storeCache(ctx context.Context, model string, fresh map[core.ID][]float32) {
	if idx.cache == nil || len(fresh) == 0 {
		return
	}
	if err := idx.cache.PutVectors(ctx, model, fresh); err != nil {
		idx.logger.Warn("embedding cache write failed", "model", model, "err", err)
	}
}

// embeddingText returns the text embedded for record. A blank selected field
// falls back to the other one so the embedder never sees an empty string.
func (idx *Index) embeddingText(record *core.OffenseRecord) string {
	offense := strings.TrimSpace(record.Offense)
	description := strings.TrimSpace(record.Description)
	switch idx.field {
	case FieldOffense:
		if offense != "" {
			return offense
		}
		return description
	case FieldCombined:
		switch {
		case offense == "":
			return description
		case description == "":
			return offense
		default:
			return offense + ". " + description
		}
	default:
		if description != "" {
			return description
		}
		return offense
	}
}
