package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyVector is returned when the server answers with a zero-length vector.
var ErrEmptyVector = errors.New("embedding server returned an empty vector")

// Embedder implements ai.Embedder against an OpenAI-compatible /embeddings
// endpoint. It pins the vector dimension on the first successful call and
// rejects later responses of a different size, so a server-side model swap
// cannot silently mix embedding spaces.
type Embedder struct {
	client embeddings.Embedder
	model  string
	dim    atomic.Int64
	logger *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIToken),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	client, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return wrapEmbedder(client, config.EmbeddingModel), nil
}

func wrapEmbedder(client embeddings.Embedder, model string) *Embedder {
	return &Embedder{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "openai-embedder", "model", model),
	}
}

// NewEmbedder creates an embedder for config.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single query.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.client.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to embed query", "length", len(text), "err", err)
		return nil, err
	}
	if err := e.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedTexts embeds texts in one request. The result has one vector per text,
// in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.logger.Debug("embedding batch", "count", len(texts))

	vectors, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to embed batch", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: server returned %d vectors for %d texts",
			core.ErrDimensionMismatch, len(vectors), len(texts))
	}
	for _, vector := range vectors {
		if err := e.checkDimension(vector); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Model returns the configured embedding model.
func (e *Embedder) Model() string {
	return e.model
}

// Dimension returns the vector size seen so far, or 0 before the first call.
func (e *Embedder) Dimension() int {
	return int(e.dim.Load())
}

func (e *Embedder) checkDimension(vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	n := int64(len(vector))
	if e.dim.CompareAndSwap(0, n) {
		e.logger.Debug("embedding dimension", "dim", n)
		return nil
	}
	if got := e.dim.Load(); got != n {
		return fmt.Errorf("%w: got %d, want %d", core.ErrDimensionMismatch, n, got)
	}
	return nil
}
