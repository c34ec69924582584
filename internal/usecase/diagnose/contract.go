package diagnose

import (
	"context"

	"github.com/kailas-cloud/phytodex/internal/domain"
	"github.com/kailas-cloud/phytodex/internal/image"
)

// ImagePreparer normalizes uploaded images for the classifier.
type ImagePreparer interface {
	Prepare(data []byte) (image.Prepared, error)
}

// Vision runs the fine-tuned models on the inference sidecar.
type Vision interface {
	Classify(ctx context.Context, imageJPEG []byte, prompts []domain.LabelPrompt) (map[string]float64, error)
	Generate(ctx context.Context, prompt string, params domain.GenerateParams) (string, error)
}
