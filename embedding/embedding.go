// Package embedding turns text or image content into fixed-length vectors
// for the similarity index. Providers are opaque functions: failures
// propagate as retrieval failures, the core never retries them.
package embedding

import (
	"context"

	"github.com/pkg/errors"
)

// Dimension is the fixed dimensionality of every vector in the index,
// chosen at index creation and never changed afterwards.
const Dimension = 256

// Provider produces embeddings of the index's fixed dimensionality.
type Provider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
}

// Composite routes text queries and image content to separate providers.
type Composite struct {
	Text  Provider
	Image Provider
}

func (c *Composite) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if c.Text == nil {
		return nil, errors.New("no text embedding provider configured")
	}
	return c.Text.EmbedText(ctx, text)
}

func (c *Composite) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if c.Image == nil {
		return nil, errors.New("no image embedding provider configured")
	}
	return c.Image.EmbedImage(ctx, data)
}
