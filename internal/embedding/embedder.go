// Package embedding provides the text embedding capability used to index
// prompts and to embed search queries.
package embedding

import "context"

// Embedder defines the interface contract for embedding generation services.
// Implementations must be safe for concurrent use and return vectors of one
// fixed dimension for the lifetime of the process.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
	EmbedBatch(ctx context.Context, contents []string) ([][]float32, error)
	ModelName() string
}
