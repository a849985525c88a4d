package embedder

import "context"

// Embedder converts text into a fixed-dimension vector. A non-nil error
// means no embedding is available; callers are expected to degrade rather
// than fail the surrounding operation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
