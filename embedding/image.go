package embedding

import (
	"bytes"
	"context"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

const featureSide = 16 // 16x16 grayscale grid, featureSide^2 == Dimension

// ImageFeatureProvider embeds an image as its 16x16 grayscale intensity
// grid scaled to [0, 1]. Crude but model-free: visually similar photos land
// close together under cosine similarity.
type ImageFeatureProvider struct{}

// NewImageFeatureProvider builds the local image embedder.
func NewImageFeatureProvider() *ImageFeatureProvider {
	return &ImageFeatureProvider{}
}

func (p *ImageFeatureProvider) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	gray := imaging.Grayscale(imaging.Resize(img, featureSide, featureSide, imaging.Lanczos))

	vec := make([]float32, 0, Dimension)
	for y := 0; y < featureSide; y++ {
		for x := 0; x < featureSide; x++ {
			vec = append(vec, float32(gray.NRGBAAt(x, y).R)/255)
		}
	}
	return vec, nil
}

func (p *ImageFeatureProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("text embeddings are not supported by the image provider")
}
