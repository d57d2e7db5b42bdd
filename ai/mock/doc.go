// Package mock provides test double implementations of ai.Embedder.
//
// The mocks allow tests to run without external AI service dependencies and
// enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Hash-based vectors: identical text, identical vector
//	embedder := mock.NewMockEmbedder()
//
//	// Bag-of-words vectors over a fixed vocabulary: texts sharing words
//	// are similar, texts sharing none are orthogonal
//	embedder := mock.NewBagOfWordsEmbedder("machine", "learning", "cooking")
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service unavailable")
//	}
package mock
