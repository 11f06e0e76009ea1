// Package oracle is the HTTP implementation of the AI-confidence
// collaborator: it polls one or more independent predictor endpoints for
// per-choice confidence samples feeding the NVI.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"storypool/internal/config"
	"storypool/internal/models"
	"storypool/internal/signal"
)

type Client struct {
	HTTP      *http.Client
	Endpoints []string
	Logger    *zap.Logger
}

func New(cfg config.OracleConfig, logger *zap.Logger) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		Endpoints: cfg.Endpoints,
		Logger:    logger,
	}
}

// predictionResponse is the wire shape each predictor returns.
type predictionResponse struct {
	Model   string `json:"model"`
	Samples []struct {
		ChoiceID   string  `json:"choice_id"`
		Confidence float64 `json:"confidence"`
	} `json:"samples"`
}

// Samples gathers confidence samples from every configured predictor.
// Individual endpoint failures are logged and skipped; whatever was gathered
// is returned, letting the NVI degrade instead of erroring.
func (c *Client) Samples(ctx context.Context, pool *models.Pool) ([]signal.ConfidenceSample, error) {
	if c == nil || pool == nil || len(c.Endpoints) == 0 {
		return nil, nil
	}
	var out []signal.ConfidenceSample
	for _, endpoint := range c.Endpoints {
		samples, err := c.poll(ctx, endpoint, pool)
		if err != nil {
			if c.Logger != nil {
				c.Logger.Warn("oracle poll failed",
					zap.String("endpoint", endpoint),
					zap.String("pool_id", pool.ID),
					zap.Error(err),
				)
			}
			continue
		}
		out = append(out, samples...)
	}
	return out, nil
}

func (c *Client) poll(ctx context.Context, endpoint string, pool *models.Pool) ([]signal.ConfidenceSample, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("pool_id", pool.ID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predictor status %d", resp.StatusCode)
	}

	var pr predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, err
	}

	known := map[string]struct{}{}
	for _, ch := range pool.Choices {
		known[ch.ID] = struct{}{}
	}
	samples := make([]signal.ConfidenceSample, 0, len(pr.Samples))
	for _, s := range pr.Samples {
		if _, ok := known[s.ChoiceID]; !ok {
			continue
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			continue
		}
		samples = append(samples, signal.ConfidenceSample{
			Model:      pr.Model,
			ChoiceID:   s.ChoiceID,
			Confidence: s.Confidence,
		})
	}
	return samples, nil
}
