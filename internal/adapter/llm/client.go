// Package llm implements the remote forecast source against a
// chat-completion-style inference endpoint. The model receives the recent
// observation tail and answers with a single JSON object of numeric
// parameters; anything else is treated as a malformed response and handed
// to the caller's fallback path.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/forecast"
	"github.com/couchcryptid/forecast-fusion-service/internal/observability"
)

// promptTail bounds how many trailing samples are sent with each request.
const promptTail = 10

// maxResponseBytes caps response reads; completions are a few KB at most.
const maxResponseBytes = 1 << 20

// Options configures the remote client. All fields come from the remote
// config section and are validated at load.
type Options struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
	RateInterval time.Duration
}

// Client calls a chat-completions endpoint and parses the answer into
// forecast parameters. Requests are rate-limited client-side; the limiter
// wait counts against the caller's context deadline.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates the remote source.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	interval := opts.RateInterval
	if interval <= 0 {
		interval = 750 * time.Millisecond
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
		metrics:    metrics,
	}
}

// Name implements forecast.Source.
func (c *Client) Name() domain.Source {
	return domain.SourceRemote
}

// Request and response shapes of the chat-completions wire format.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Predict implements forecast.Source. Transport trouble, non-2xx statuses
// and rate-limiter context expiry surface as ErrRemoteUnavailable;
// undecodable payloads surface as ErrMalformedResponse.
func (c *Client) Predict(ctx context.Context, region domain.Region, series domain.ObservationSeries, horizon domain.Horizon) (domain.Parameters, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", forecast.ErrRemoteUnavailable, err)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: buildPrompt(region, series, horizon)}},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", forecast.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: status %d", forecast.ErrRemoteUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", forecast.ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", forecast.ErrMalformedResponse)
	}

	params, err := parseContent(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("remote forecast received",
		"request_id", requestID, "region", region.Name, "horizon", horizon.ID, "parameters", len(params))
	return params, nil
}

// buildPrompt renders the user message: recent readings plus an explicit
// response contract the parser can rely on.
func buildPrompt(region domain.Region, series domain.ObservationSeries, horizon domain.Horizon) string {
	tail := series.Samples
	if len(tail) > promptTail {
		tail = tail[len(tail)-promptTail:]
	}
	history, _ := json.MarshalIndent(tail, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are a numerical weather model for %s (lat %.2f, lon %.2f).\n",
		region.Name, region.Lat, region.Lon)
	fmt.Fprintf(&b, "Recent hourly observations, oldest first:\n%s\n\n", history)
	fmt.Fprintf(&b, "Predict conditions %s from the last observation (lead time %s).\n",
		horizon.ID, horizon.Lead)
	b.WriteString("Respond with exactly one JSON object and no other text, using these keys: ")
	b.WriteString("temperature (C), humidity (%), pressure (hPa), wind_speed (m/s), ")
	b.WriteString("precipitation_rate (mm/h), snowfall (mm), cloud_cover (%), visibility (km), ")
	b.WriteString("precipitation_probability (%), aqi. All values must be numbers.")
	return b.String()
}

// parseContent extracts the JSON object from the model's answer. Models
// habitually wrap JSON in markdown fences or prose, so the parser takes the
// outermost brace-delimited span rather than requiring a clean document.
func parseContent(content string) (domain.Parameters, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in content", forecast.ErrMalformedResponse)
	}

	var raw map[string]json.Number
	dec := json.NewDecoder(strings.NewReader(content[start : end+1]))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode content: %v", forecast.ErrMalformedResponse, err)
	}

	known := map[string]bool{
		domain.ParamTemperature:       true,
		domain.ParamHumidity:          true,
		domain.ParamPressure:          true,
		domain.ParamWindSpeed:         true,
		domain.ParamPrecipitationRate: true,
		domain.ParamSnowfall:          true,
		domain.ParamCloudCover:        true,
		domain.ParamVisibility:        true,
		domain.ParamPrecipProbability: true,
		domain.ParamAQI:               true,
	}

	params := domain.Parameters{}
	for key, num := range raw {
		if !known[key] {
			continue
		}
		v, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric %s", forecast.ErrMalformedResponse, key)
		}
		params[key] = v
	}
	if _, ok := params[domain.ParamTemperature]; !ok {
		return nil, fmt.Errorf("%w: missing temperature", forecast.ErrMalformedResponse)
	}
	return params, nil
}
