package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/lexmap/ai/mock"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := Load(strings.NewReader(ipcCSV), strings.NewReader(bnsCSV), opts...)
	require.NoError(t, err)
	return idx
}

func manyOffenses(n int) []*core.OffenseRecord {
	records := make([]*core.OffenseRecord, n)
	for i := range records {
		records[i] = &core.OffenseRecord{
			Section:     fmt.Sprintf("%d", 100+i),
			Offense:     fmt.Sprintf("Offense %d", i),
			Description: fmt.Sprintf("Description of offense number %d", i),
		}
	}
	return records
}

func unitLength(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestEmbedAll(t *testing.T) {
	ctx := context.Background()
	idx := loadTestIndex(t)
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 16

	require.NoError(t, idx.EmbedAll(ctx, embedder))

	assert.True(t, idx.Embedded())
	assert.Equal(t, "mock-embedder", idx.Model())
	assert.Equal(t, 16, idx.Dimension())
	for _, record := range idx.Offenses() {
		require.Len(t, record.Vector, 16)
		assert.InDelta(t, 1.0, unitLength(record.Vector), 1e-5)
	}
	assert.Equal(t, 3, embedder.TextsEmbedded())
}

func TestEmbedAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	idx := loadTestIndex(t)
	embedder := mock.NewMockEmbedder()

	require.NoError(t, idx.EmbedAll(ctx, embedder))
	first := idx.Offenses()[0].Vector
	calls := embedder.CallCount()

	require.NoError(t, idx.EmbedAll(ctx, embedder))
	assert.Equal(t, calls, embedder.CallCount(), "second call with the same model must not embed")
	assert.Equal(t, first, idx.Offenses()[0].Vector)

	t.Run("different model is rejected", func(t *testing.T) {
		other := mock.NewMockEmbedder()
		other.ModelName = "other-model"
		other.Dimension = 8

		err := idx.EmbedAll(ctx, other)
		assert.ErrorIs(t, err, ErrAlreadyEmbedded)
		assert.Zero(t, other.CallCount())
		assert.Equal(t, "mock-embedder", idx.Model())
		assert.Equal(t, first, idx.Offenses()[0].Vector)
	})

	t.Run("fresh index for a new model", func(t *testing.T) {
		other := mock.NewMockEmbedder()
		other.ModelName = "other-model"
		other.Dimension = 8

		next := loadTestIndex(t)
		require.NoError(t, next.EmbedAll(ctx, other))
		assert.Equal(t, "other-model", next.Model())
		assert.Equal(t, 8, next.Dimension())
		for _, record := range next.Offenses() {
			assert.Len(t, record.Vector, 8)
		}
	})
}

func TestEmbedAll_BatchingPreservesOrder(t *testing.T) {
	idx, err := New(manyOffenses(23), nil, WithBatchSize(4), WithPoolSize(3))
	require.NoError(t, err)

	// Each offense gets a one-hot vector on its own axis.
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			var n int
			if _, err := fmt.Sscanf(text, "Description of offense number %d", &n); err != nil {
				return nil, err
			}
			v := make([]float32, 23)
			v[n] = 1
			out[i] = v
		}
		return out, nil
	}

	require.NoError(t, idx.EmbedAll(context.Background(), embedder))
	assert.Equal(t, 6, embedder.CallCount(), "23 offenses in batches of 4")
	for i, record := range idx.Offenses() {
		assert.Equal(t, float32(1), record.Vector[i], "offense %d", i)
	}
}

func TestEmbedAll_TextField(t *testing.T) {
	tests := []struct {
		field TextField
		want  string
	}{
		{FieldDescription, "Whoever intends to take dishonestly any movable property"},
		{FieldOffense, "Theft"},
		{FieldCombined, "Theft. Whoever intends to take dishonestly any movable property"},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			idx := loadTestIndex(t, WithTextField(tt.field))
			var (
				mu   sync.Mutex
				seen []string
			)
			embedder := mock.NewMockEmbedder()
			embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
				mu.Lock()
				seen = append(seen, texts...)
				mu.Unlock()
				out := make([][]float32, len(texts))
				for i := range out {
					out[i] = []float32{1, 1}
				}
				return out, nil
			}
			require.NoError(t, idx.EmbedAll(context.Background(), embedder))
			assert.Contains(t, seen, tt.want)
		})
	}

	t.Run("blank field falls back", func(t *testing.T) {
		idx, err := New([]*core.OffenseRecord{{Section: "1", Offense: "Only a title"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Only a title", idx.embeddingText(idx.Offenses()[0]))
	})
}

func TestEmbedAll_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("nil embedder", func(t *testing.T) {
		idx := loadTestIndex(t)
		assert.ErrorIs(t, idx.EmbedAll(ctx, nil), ErrEmbedderRequired)
	})

	t.Run("empty corpus", func(t *testing.T) {
		idx, err := New(nil, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, idx.EmbedAll(ctx, mock.NewMockEmbedder()), core.ErrEmptyCorpus)
	})

	t.Run("embedder failure is wrapped verbatim", func(t *testing.T) {
		idx := loadTestIndex(t)
		cause := errors.New("model server unreachable")
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return nil, cause
		}

		err := idx.EmbedAll(ctx, embedder)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbedding)
		assert.ErrorIs(t, err, cause)

		var embErr *core.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.Same(t, cause, embErr.Err)
		assert.False(t, idx.Embedded())
		assert.Nil(t, idx.Offenses()[0].Vector, "failed run leaves no partial vectors")
	})

	t.Run("mixed dimensions", func(t *testing.T) {
		idx := loadTestIndex(t, WithBatchSize(1))
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			if strings.Contains(texts[0], "murder") {
				return [][]float32{{1, 2, 3}}, nil
			}
			return [][]float32{{1, 2}}, nil
		}

		err := idx.EmbedAll(ctx, embedder)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
		assert.ErrorIs(t, err, core.ErrEmbedding)
		assert.False(t, idx.Embedded())
	})

	t.Run("wrong vector count", func(t *testing.T) {
		idx := loadTestIndex(t)
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}
		assert.ErrorIs(t, idx.EmbedAll(ctx, embedder), core.ErrEmbedding)
	})

	t.Run("cancelled context", func(t *testing.T) {
		idx := loadTestIndex(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := idx.EmbedAll(cctx, mock.NewMockEmbedder())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, idx.Embedded())
	})
}

func TestEmbedAll_Cache(t *testing.T) {
	cache, history, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		history.Close()
		cache.Close()
		backend.Close()
	}()
	ctx := context.Background()

	first := loadTestIndex(t, WithCache(cache))
	embedder := mock.NewMockEmbedder()
	require.NoError(t, first.EmbedAll(ctx, embedder))
	assert.Equal(t, 3, embedder.TextsEmbedded())

	second := loadTestIndex(t, WithCache(cache))
	embedder.Reset()
	require.NoError(t, second.EmbedAll(ctx, embedder))
	assert.Equal(t, 1, embedder.TextsEmbedded(), "only the dimension check should reach the embedder")
	for i := range first.Offenses() {
		assert.Equal(t, first.Offenses()[i].Vector, second.Offenses()[i].Vector)
	}

	t.Run("other models miss the cache", func(t *testing.T) {
		idx := loadTestIndex(t, WithCache(cache))
		other := mock.NewMockEmbedder()
		other.ModelName = "other-model"
		require.NoError(t, idx.EmbedAll(ctx, other))
		assert.Equal(t, 3, other.TextsEmbedded())
	})
}

func TestEmbedAll_StaleCacheDimension(t *testing.T) {
	cache, history, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		history.Close()
		cache.Close()
		backend.Close()
	}()
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	require.NoError(t, loadTestIndex(t, WithCache(cache)).EmbedAll(ctx, embedder))

	// Same model name, new vector size on the server.
	embedder.Dimension = 16
	embedder.Reset()

	idx := loadTestIndex(t, WithCache(cache))
	require.NoError(t, idx.EmbedAll(ctx, embedder))
	assert.Equal(t, 16, idx.Dimension())
	assert.Equal(t, 3, embedder.TextsEmbedded())
	for _, record := range idx.Offenses() {
		assert.Len(t, record.Vector, 16)
	}

	query, err := embedder.EmbedText(ctx, "theft of a bicycle")
	require.NoError(t, err)
	_, err = core.ValidateDimensions(idx.Dimension(), query)
	assert.NoError(t, err)

	t.Run("cache holds the new vectors", func(t *testing.T) {
		embedder.Reset()
		again := loadTestIndex(t, WithCache(cache))
		require.NoError(t, again.EmbedAll(ctx, embedder))
		assert.Equal(t, 16, again.Dimension())
		assert.Equal(t, 1, embedder.TextsEmbedded())
	})
}

func TestEmbedAll_Progress(t *testing.T) {
	var buf bytes.Buffer
	idx, err := New(manyOffenses(5), nil, WithProgress(&buf, 2), WithBatchSize(2))
	require.NoError(t, err)

	require.NoError(t, idx.EmbedAll(context.Background(), mock.NewMockEmbedder()))
	assert.Contains(t, buf.String(), "5/5")
}

func TestOptions(t *testing.T) {
	t.Run("invalid text field", func(t *testing.T) {
		_, err := New(nil, nil, WithTextField(TextField(9)))
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		idx, err := New(nil, nil, WithBatchSize(0), WithPoolSize(-1), WithLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, DefaultBatchSize, idx.batchSize)
		assert.Equal(t, 1, idx.poolSize)
		assert.NotNil(t, idx.logger)
		assert.Equal(t, FieldDescription, idx.TextField())
	})

	t.Run("parse text field", func(t *testing.T) {
		field, err := ParseTextField("Offence")
		require.NoError(t, err)
		assert.Equal(t, FieldOffense, field)

		field, err = ParseTextField("")
		require.NoError(t, err)
		assert.Equal(t, FieldDescription, field)

		_, err = ParseTextField("punishment")
		assert.Error(t, err)
	})
}
