package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Client calls a model serving endpoint over HTTP. The endpoint takes
// one feature record as a JSON object on POST /predict and returns the
// predicted total. Failure bodies are surfaced verbatim so the
// reconciler can extract missing column names from them.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type predictResponse struct {
	Prediction float64 `mapstructure:"prediction"`
}

type schemaResponse struct {
	Features []string `mapstructure:"features"`
}

func (c *Client) Estimate(ctx context.Context, features Features) (float64, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return 0, fmt.Errorf("failed to encode feature record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("estimator call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read estimator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The body carries the model runtime's own failure message,
		// possibly citing missing columns. Keep it untouched.
		return 0, fmt.Errorf("estimator returned status %d: %s", resp.StatusCode, string(raw))
	}

	decoded := make(map[string]any)
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, fmt.Errorf("failed to decode estimator response: %w", err)
	}

	prediction := new(predictResponse)
	if err := mapstructure.Decode(decoded, prediction); err != nil {
		return 0, fmt.Errorf("unexpected estimator response shape: %w", err)
	}

	return prediction.Prediction, nil
}

// RequiredFeatures queries the serving endpoint for its expected input
// columns. Older model servers do not expose GET /schema, in which
// case the reconciler falls back to its retry loop.
func (c *Client) RequiredFeatures(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/schema", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("estimator schema query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("estimator schema query returned status %d", resp.StatusCode)
	}

	decoded := make(map[string]any)
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode estimator schema: %w", err)
	}

	schema := new(schemaResponse)
	if err := mapstructure.Decode(decoded, schema); err != nil {
		return nil, fmt.Errorf("unexpected estimator schema shape: %w", err)
	}

	return schema.Features, nil
}
