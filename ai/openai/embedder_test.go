package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lexmap/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient stands in for the langchaingo embedder.
type fakeClient struct {
	dim   int
	short bool
	err   error
	calls int
}

func (f *fakeClient) vector(text string) []float32 {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v
}

func (f *fakeClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vector(text))
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeClient) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	ctx := context.Background()

	t.Run("one vector per text", func(t *testing.T) {
		client := &fakeClient{dim: 4}
		e := wrapEmbedder(client, "all-minilm")

		vectors, err := e.EmbedTexts(ctx, []string{"theft", "murder"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, float32(len("theft")), vectors[0][0])
		assert.Equal(t, 4, e.Dimension())
	})

	t.Run("empty batch makes no request", func(t *testing.T) {
		client := &fakeClient{dim: 4}
		e := wrapEmbedder(client, "all-minilm")

		vectors, err := e.EmbedTexts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Zero(t, client.calls)
	})

	t.Run("short response", func(t *testing.T) {
		e := wrapEmbedder(&fakeClient{dim: 4, short: true}, "all-minilm")
		_, err := e.EmbedTexts(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("server error is returned unchanged", func(t *testing.T) {
		boom := errors.New("connection refused")
		e := wrapEmbedder(&fakeClient{err: boom}, "all-minilm")
		_, err := e.EmbedTexts(ctx, []string{"a"})
		assert.Same(t, boom, err)
	})
}

func TestEmbedder_DimensionIsPinned(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{dim: 3}
	e := wrapEmbedder(client, "all-minilm")

	_, err := e.EmbedText(ctx, "someone stole my bicycle")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dimension())

	client.dim = 5
	_, err = e.EmbedText(ctx, "someone stole my bicycle")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	client.dim = 0
	_, err = e.EmbedText(ctx, "x")
	assert.ErrorIs(t, err, ErrEmptyVector)
}

func TestEmbedder_Model(t *testing.T) {
	e := wrapEmbedder(&fakeClient{dim: 1}, "nomic-embed-text")
	assert.Equal(t, "nomic-embed-text", e.Model())
	assert.Zero(t, e.Dimension())
}
