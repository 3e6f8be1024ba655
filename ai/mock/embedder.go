package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/poiesic/mentormatch/ai"
	"github.com/poiesic/mentormatch/core"
)

// DefaultDimensions is the length of vectors produced by default.
const DefaultDimensions = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields and is safe for
// concurrent use as long as the function fields are set before first use.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses fixed vectors registered with WithVector, then the
	// default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, callerID, text string) ([]float32, error)

	// Dimensions is the length of default vectors. Zero means DefaultDimensions.
	Dimensions int

	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
	callers []string
	texts   []string
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// WithVector makes EmbedText return vector for text.
func (m *MockEmbedder) WithVector(text string, vector []float32) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors == nil {
		m.vectors = make(map[string][]float32)
	}
	m.vectors[text] = vector
	return m
}

// EmbedText returns a registered or deterministic embedding for text.
func (m *MockEmbedder) EmbedText(ctx context.Context, callerID, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.callers = append(m.callers, callerID)
	m.texts = append(m.texts, text)
	fixed, ok := m.vectors[text]
	m.mu.Unlock()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, callerID, text)
	}
	if ok {
		return fixed, nil
	}

	dim := m.Dimensions
	if dim == 0 {
		dim = DefaultDimensions
	}
	return GenerateDeterministicVector(text, dim), nil
}

// CallCount returns the number of times EmbedText was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Callers returns the caller ids seen, in call order.
func (m *MockEmbedder) Callers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callers...)
}

// Texts returns the texts embedded, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.callers = nil
	m.texts = nil
	m.vectors = nil
	m.EmbedTextFunc = nil
}

// GenerateDeterministicVector creates a unit-length embedding from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func GenerateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return core.NormalizeVector(vector)
}
