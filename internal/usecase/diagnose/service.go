// Package diagnose classifies leaf images into disease classes and
// generates a treatment recommendation for the winning class.
package diagnose

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
	"github.com/kailas-cloud/phytodex/internal/metrics"
)

// Service orchestrates the classify-then-recommend pipeline.
// The response is atomic: if either model call fails, the whole
// diagnosis fails and nothing partial is returned.
type Service struct {
	images ImagePreparer
	vision Vision
	labels []domain.LabelPrompt
	params domain.GenerateParams
	logger *zap.Logger
}

// New creates a diagnosis service. Empty labels fall back to the
// built-in potato disease classes.
func New(
	images ImagePreparer, vision Vision,
	labels []domain.LabelPrompt, params domain.GenerateParams,
	logger *zap.Logger,
) *Service {
	if len(labels) == 0 {
		labels = domain.DefaultLabelPrompts()
	}
	return &Service{
		images: images,
		vision: vision,
		labels: labels,
		params: params,
		logger: logger,
	}
}

// Diagnose classifies the image against every configured label prompt,
// softmaxes the scores, and generates a treatment for the top class.
func (s *Service) Diagnose(ctx context.Context, imageData []byte) (domain.Prediction, error) {
	start := time.Now()

	prepared, err := s.images.Prepare(imageData)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prepare image: %w", err)
	}

	scores, err := s.vision.Classify(ctx, prepared.Data, s.labels)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("classify image: %w", err)
	}

	probs, disease, err := s.probabilities(scores)
	if err != nil {
		return domain.Prediction{}, err
	}

	recommendation, err := s.vision.Generate(ctx, domain.RecommendationPrompt(disease), s.params)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("generate treatment: %w", err)
	}

	metrics.PredictionsTotal.WithLabelValues(disease).Inc()

	s.logger.Info("Diagnosis completed",
		zap.String("disease", disease),
		zap.Float64("confidence", probs[disease]),
		zap.Int("image_width", prepared.Width),
		zap.Int("image_height", prepared.Height),
		zap.Duration("duration", time.Since(start)),
	)

	return domain.Prediction{
		Disease:        disease,
		Confidence:     probs[disease],
		Probabilities:  probs,
		Recommendation: recommendation,
	}, nil
}

// probabilities turns raw per-label logits into a softmax distribution
// and picks the argmax. Label order breaks exact ties.
func (s *Service) probabilities(scores map[string]float64) (map[string]float64, string, error) {
	vals := make([]float64, len(s.labels))
	maxScore := math.Inf(-1)
	for i, lp := range s.labels {
		v, ok := scores[lp.Label]
		if !ok {
			return nil, "", fmt.Errorf("missing score for label %q: %w", lp.Label, domain.ErrVisionProviderError)
		}
		vals[i] = v
		if v > maxScore {
			maxScore = v
		}
	}

	// Stable softmax: shift by the max so exp never overflows.
	var sum float64
	exps := make([]float64, len(vals))
	for i, v := range vals {
		exps[i] = math.Exp(v - maxScore)
		sum += exps[i]
	}

	probs := make(map[string]float64, len(vals))
	best := ""
	bestP := -1.0
	for i, lp := range s.labels {
		p := exps[i] / sum
		probs[lp.Label] = p
		if p > bestP {
			bestP = p
			best = lp.Label
		}
	}

	return probs, best, nil
}
