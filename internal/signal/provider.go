package signal

import (
	"context"

	"storypool/internal/models"
)

// ConfidenceProvider is the AI-confidence collaborator: it supplies
// per-choice confidence samples from one or more independent predictors.
// A provider returning no samples (or an error) only lowers NVI confidence;
// it never fails the signal request.
type ConfidenceProvider interface {
	Samples(ctx context.Context, pool *models.Pool) ([]ConfidenceSample, error)
}

// NoopProvider is the zero-predictor fallback used when no oracle is
// configured.
type NoopProvider struct{}

func (NoopProvider) Samples(ctx context.Context, pool *models.Pool) ([]ConfidenceSample, error) {
	return nil, nil
}
