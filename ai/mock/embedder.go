package mock

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDim = 384

// MockEmbedder is a function-field test double for ai.Embedder. Unset fields
// fall back to a deterministic hash-derived vector, so identical text always
// embeds identically across runs.
type MockEmbedder struct {
	// EmbedTextFunc overrides EmbedText when set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc overrides EmbedTexts when set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	calls int
}

// NewMockEmbedder creates a mock embedder with the deterministic default.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// EmbedText embeds a single text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return hashVector(text), nil
}

// EmbedTexts embeds a batch, one vector per input in order.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text)
	}
	return out, nil
}

// CallCount returns how many embed calls were made, single or batch.
func (m *MockEmbedder) CallCount() int {
	return m.calls
}

// Reset clears injected behavior and the call count.
func (m *MockEmbedder) Reset() {
	m.calls = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// hashVector derives a unit-length vector from the text's FNV hash through a
// linear congruential sequence. Unit length makes dot products behave like
// cosine similarity in tests.
func hashVector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	state := h.Sum32()

	vec := make([]float32, mockDim)
	var norm float64
	for i := range vec {
		state = state*1664525 + 1013904223
		v := float32(state%1000) / 1000.0
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
