package signal

import (
	"math"

	"storypool/internal/config"
)

// ConfidenceSample is one AI predictor's confidence in one choice winning,
// in [0,1]. Samples come from the AI-confidence collaborator; the calculator
// never fetches them itself.
type ConfidenceSample struct {
	Model      string  `json:"model"`
	ChoiceID   string  `json:"choice_id"`
	Confidence float64 `json:"confidence"`
}

// NVIResult is the Narrative Volatility Index plus its estimate confidence.
// Score says how contested the outcome is; Confidence says how much the
// score itself can be trusted given the evidence volume. The two never mix:
// a thin pool can be maximally volatile and still carry a low-confidence
// estimate.
type NVIResult struct {
	Score             float64 `json:"score"`
	Confidence        float64 `json:"confidence"`
	Entropy           float64 `json:"entropy"`
	NormalizedEntropy float64 `json:"normalized_entropy"`
	ModelDivergence   float64 `json:"model_divergence"`
	SampleCount       int     `json:"sample_count"`
	ModelCount        int     `json:"model_count"`
	BetCount          int     `json:"bet_count"`
	Degraded          bool    `json:"degraded"`
}

// Entropy is the Shannon entropy of the odds distribution in bits, bounded
// [0, log2(n)]. Zero-probability choices contribute nothing.
func Entropy(odds map[string]float64) float64 {
	h := 0.0
	for _, p := range odds {
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	return h
}

// Calculator blends bet-distribution entropy with AI-model divergence into
// the 0-100 NVI. Weights come from config and are renormalized, so partial
// input (no AI samples) degrades the blend instead of failing it.
type Calculator struct {
	entropyWeight    float64
	divergenceWeight float64
}

func NewCalculator(cfg config.SignalConfig) *Calculator {
	ew := cfg.EntropyWeight
	dw := cfg.DivergenceWeight
	if ew <= 0 && dw <= 0 {
		ew, dw = 0.6, 0.4
	}
	return &Calculator{entropyWeight: ew, divergenceWeight: dw}
}

func (c *Calculator) NVI(odds map[string]float64, samples []ConfidenceSample, betCount int) NVIResult {
	res := NVIResult{
		Entropy:     Entropy(odds),
		SampleCount: len(samples),
		BetCount:    betCount,
	}

	n := activeChoices(odds)
	if n > 1 {
		res.NormalizedEntropy = res.Entropy / math.Log2(float64(n))
	}

	models := map[string]struct{}{}
	for _, s := range samples {
		models[s.Model] = struct{}{}
	}
	res.ModelCount = len(models)
	res.ModelDivergence = confidenceDivergence(samples)

	ew, dw := c.entropyWeight, c.divergenceWeight
	if len(samples) == 0 {
		// No AI input: entropy carries the whole score, confidence drops.
		dw = 0
		res.Degraded = true
	}
	score := 0.0
	if ew+dw > 0 {
		// Confidences live in [0,1]; the largest attainable spread around the
		// mean is 0.5, which normalizes divergence onto [0,1].
		normDiv := math.Min(1, res.ModelDivergence/0.5)
		score = (ew*res.NormalizedEntropy + dw*normDiv) / (ew + dw)
	}
	res.Score = clamp01(score) * 100

	res.Confidence = estimateConfidence(betCount, res.ModelCount)
	return res
}

// estimateConfidence is a saturating function of evidence volume: how many
// bets shape the distribution and how many independent predictors sampled
// it. It describes trust in the NVI estimate, not the volatility itself.
func estimateConfidence(betCount, modelCount int) float64 {
	if betCount < 0 {
		betCount = 0
	}
	volume := float64(betCount) / (float64(betCount) + 20)
	predictors := float64(modelCount) / (float64(modelCount) + 2)
	return clamp01(0.6*volume + 0.4*predictors)
}

// confidenceDivergence is the mean per-choice standard deviation of model
// confidences. One sample per choice means no measurable disagreement.
func confidenceDivergence(samples []ConfidenceSample) float64 {
	byChoice := map[string][]float64{}
	for _, s := range samples {
		byChoice[s.ChoiceID] = append(byChoice[s.ChoiceID], s.Confidence)
	}
	total, counted := 0.0, 0
	for _, vals := range byChoice {
		if len(vals) < 2 {
			continue
		}
		total += stddev(vals)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func stddev(vals []float64) float64 {
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	variance := 0.0
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))
	return math.Sqrt(variance)
}

func activeChoices(odds map[string]float64) int {
	return len(odds)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
