package memory

import "context"

// Embedder is the external collaborator that turns content into vectors
// (spec.md §6). No implementation ships with this module — the embedding
// model runtime is explicitly out of scope — callers inject one of their
// own. Embed/EmbedBatch are context-aware since a real embedder typically
// calls out to a model runtime or remote service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
