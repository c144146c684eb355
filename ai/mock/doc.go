// Package mock provides a test double for ai.Embedder.
//
// MockEmbedder lets tests run the embed phase without an embedding service
// and with controlled, deterministic output.
//
// # Usage in Tests
//
//	// Default behavior: deterministic vectors derived from a text hash
//	embedder := mock.NewMockEmbedder(mock.WithDimension(8))
//	vectors, err := embedder.EmbedTexts(ctx, []string{"a", "b"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
