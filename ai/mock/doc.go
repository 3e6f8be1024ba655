// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	// Deterministic vectors derived from the text
//	embedder := mock.NewMockEmbedder()
//
//	// Fixed vectors for known texts
//	embedder := mock.NewMockEmbedder().WithVector("python", []float32{1, 0})
//
//	// Failure injection
//	embedder.EmbedTextFunc = func(ctx context.Context, callerID, text string) ([]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Assertions
//	count := embedder.CallCount()
//	callers := embedder.Callers()
package mock
