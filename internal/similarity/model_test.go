package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// stubEmbedder returns fixed vectors keyed by input text.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, s.vectors[t])
	}
	return out, nil
}

// =============================================================================
// Section 3.4: Model Fallback Behavior
// =============================================================================

// TestModelDegradedWithoutEmbedder tests that a nil embedder falls back to
// pure-text scoring.
func TestModelDegradedWithoutEmbedder(t *testing.T) {
	m := NewModel(nil, zap.NewNop())

	if _, ok := m.Embed(context.Background(), []string{"x"}); ok {
		t.Error("Embed should report not-ok without a backend")
	}
	want := TextSimilarity("alpha beta", "alpha gamma")
	if got := m.Similarity(context.Background(), "alpha beta", "alpha gamma"); !almostEqual(got, want) {
		t.Errorf("Similarity = %v, want degraded score %v", got, want)
	}
}

// TestModelDegradedOnError tests fallback when the backend call fails.
func TestModelDegradedOnError(t *testing.T) {
	m := NewModel(&stubEmbedder{err: errors.New("backend down")}, zap.NewNop())

	want := TextSimilarity("one two", "one three")
	if got := m.Similarity(context.Background(), "one two", "one three"); !almostEqual(got, want) {
		t.Errorf("Similarity = %v, want degraded score %v", got, want)
	}
}

// TestModelUsesEmbeddings tests the cosine path when vectors are available.
func TestModelUsesEmbeddings(t *testing.T) {
	m := NewModel(&stubEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {1, 0},
		"c": {0, 1},
	}}, zap.NewNop())

	if got := m.Similarity(context.Background(), "a", "b"); !almostEqual(got, 1) {
		t.Errorf("Similarity(a, b) = %v, want 1", got)
	}
	if got := m.Similarity(context.Background(), "a", "c"); !almostEqual(got, 0) {
		t.Errorf("Similarity(a, c) = %v, want 0", got)
	}
}

// TestModelEmptyInputs tests the zero-score short circuits.
func TestModelEmptyInputs(t *testing.T) {
	m := NewModel(&stubEmbedder{}, zap.NewNop())

	if got := m.Similarity(context.Background(), "", "text"); got != 0 {
		t.Errorf("Similarity with empty input = %v, want 0", got)
	}
	if got := m.FilenameSimilarity(context.Background(), "name", ""); got != 0 {
		t.Errorf("FilenameSimilarity with empty input = %v, want 0", got)
	}
}

// TestModelBatchMismatch tests that a short batch flips to degraded mode.
func TestModelBatchMismatch(t *testing.T) {
	short := &stubEmbedder{vectors: map[string][]float32{}}
	m := NewModel(embedderFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		vecs, _ := short.Embed(ctx, texts)
		return vecs[:len(vecs)-1], nil
	}), zap.NewNop())

	if _, ok := m.Embed(context.Background(), []string{"a", "b"}); ok {
		t.Error("Embed should report not-ok on batch size mismatch")
	}
}

type embedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f embedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// =============================================================================
// Section 3.5: HTTP Embedder
// =============================================================================

// TestHTTPEmbedder tests the wire format against a fake endpoint.
func TestHTTPEmbedder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model == "" {
			t.Error("request carries no model name")
		}

		resp := embedResponse{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2, 0.3}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	e := NewHTTPEmbedder(ts.URL, zap.NewNop())
	vectors, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if len(vectors[0]) != 3 {
		t.Errorf("vector dim = %d, want 3", len(vectors[0]))
	}
}

// TestHTTPEmbedderServerError tests non-200 handling.
func TestHTTPEmbedderServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusBadRequest)
	}))
	defer ts.Close()

	e := NewHTTPEmbedder(ts.URL, zap.NewNop())
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("Embed should fail on non-200 responses")
	}
}
