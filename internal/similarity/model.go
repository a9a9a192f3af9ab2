// Package similarity scores how alike two pieces of text are.
//
// The preferred signal is a dense sentence embedding produced by an external
// embedding endpoint (any OpenAI-compatible /v1/embeddings server, e.g.
// llama.cpp or Ollama serving a MiniLM-class model). When no endpoint is
// configured or a call fails, the model degrades to a deterministic pure-text
// score: 0.4 x character SequenceMatcher ratio + 0.6 x Jaccard over
// whitespace tokens, on lowercased trimmed inputs.
package similarity

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Embedder produces dense vectors for a batch of short texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Model answers similarity queries, with the embedding backend when
// available and the degraded fallback otherwise. Safe for concurrent use;
// treated as read-only after construction.
type Model struct {
	embedder Embedder
	logger   *zap.Logger
}

// NewModel creates a Model. A nil embedder puts the model permanently in
// degraded mode.
func NewModel(embedder Embedder, logger *zap.Logger) *Model {
	return &Model{embedder: embedder, logger: logger}
}

var (
	defaultOnce  sync.Once
	defaultModel *Model
)

// Default returns the process-wide model, constructing it on first call.
// embedURL selects the embedding endpoint; empty means degraded mode.
// Later calls ignore the arguments.
func Default(embedURL string, logger *zap.Logger) *Model {
	defaultOnce.Do(func() {
		var embedder Embedder
		if embedURL != "" {
			embedder = NewHTTPEmbedder(embedURL, logger)
			logger.Info("embedding endpoint configured", zap.String("url", embedURL))
		} else {
			logger.Warn("no embedding endpoint configured, using degraded text similarity")
		}
		defaultModel = NewModel(embedder, logger)
	})
	return defaultModel
}

// Embed returns embeddings for a batch of texts, or ok=false when the model
// is degraded or the backend call failed. Callers fall back to pure-text
// scoring when ok is false.
func (m *Model) Embed(ctx context.Context, texts []string) (vectors [][]float32, ok bool) {
	if m.embedder == nil || len(texts) == 0 {
		return nil, false
	}
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		m.logger.Warn("embedding call failed, falling back to text similarity", zap.Error(err))
		return nil, false
	}
	if len(vectors) != len(texts) {
		m.logger.Warn("embedding batch size mismatch",
			zap.Int("want", len(texts)), zap.Int("got", len(vectors)))
		return nil, false
	}
	return vectors, true
}

// Similarity scores two texts in [0, 1].
func (m *Model) Similarity(ctx context.Context, a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if vectors, ok := m.Embed(ctx, []string{a, b}); ok {
		return Cosine(vectors[0], vectors[1])
	}
	return TextSimilarity(a, b)
}

// FilenameSimilarity scores two file names in [0, 1]. With an embedding
// backend the names are compared semantically; degraded mode falls back to
// the plain character/token score.
func (m *Model) FilenameSimilarity(ctx context.Context, name1, name2 string) float64 {
	if name1 == "" || name2 == "" {
		return 0
	}
	if vectors, ok := m.Embed(ctx, []string{name1, name2}); ok {
		return Cosine(vectors[0], vectors[1])
	}
	return PlainFilenameSimilarity(name1, name2)
}
