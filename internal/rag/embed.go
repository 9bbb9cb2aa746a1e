package rag

import "context"

// Embedder is the minimal capability the indexer and retrieval layer need:
// turn text into fixed-dimensionality vectors. llmrouter.Client satisfies this directly via its Embed
// method, so the RAG package depends on this narrow interface instead of
// the whole llmrouter.Client surface.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
