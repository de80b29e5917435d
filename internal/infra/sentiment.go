package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"futures_go/internal/domain"
)

const defaultSentimentURL = "https://api.alternative.me/fng/?limit=1"

// fngResponse represents the alternative.me Fear & Greed API response
type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

// Sentiment is one reading of the Fear & Greed index.
type Sentiment struct {
	Value          string
	Classification string // e.g. "Extreme Fear", "Fear", "Neutral", "Greed"
}

// AllowsSide applies the contrarian gate: buys want a fearful market,
// sells want a greedy one.
func (s Sentiment) AllowsSide(side domain.Side) bool {
	c := strings.ToLower(s.Classification)
	switch side {
	case domain.SideBuy:
		return strings.Contains(c, "fear")
	case domain.SideSell:
		return strings.Contains(c, "greed")
	}
	return false
}

// SentimentClient fetches the Fear & Greed index from alternative.me
type SentimentClient struct {
	apiURL     string
	httpClient *http.Client
}

// NewSentimentClient creates a sentiment client. An empty URL selects
// the default endpoint.
func NewSentimentClient(apiURL string, timeoutSec int) *SentimentClient {
	if apiURL == "" {
		apiURL = defaultSentimentURL
	}
	timeout := 10 * time.Second
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return &SentimentClient{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves the current index with a bounded retry.
func (c *SentimentClient) Fetch(ctx context.Context) (Sentiment, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := CalculateBackoff(i - 1)
			slog.Info("Retrying sentiment fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return Sentiment{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		s, err := c.doFetch(ctx)
		if err == nil {
			return s, nil
		}
		lastErr = err
		slog.Warn("Sentiment fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return Sentiment{}, lastErr
}

func (c *SentimentClient) doFetch(ctx context.Context) (Sentiment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return Sentiment{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Sentiment{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sentiment{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Sentiment{}, err
	}

	var data fngResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return Sentiment{}, err
	}
	if len(data.Data) == 0 {
		return Sentiment{}, fmt.Errorf("empty response from sentiment API")
	}

	return Sentiment{
		Value:          data.Data[0].Value,
		Classification: data.Data[0].Classification,
	}, nil
}
