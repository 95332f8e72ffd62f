// Package client implements the authenticated HTTP client for the mobility
// heatmap provider: the grid endpoint plus the four dwell density and
// demographics endpoints, with error classification and bounded retries.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
)

// DefaultBaseURL is the provider's demo environment.
const DefaultBaseURL = "https://api.swisscom.com/layer/heatmaps/demo"

// apiVersionHeader and apiVersion identify the provider API revision.
const (
	apiVersionHeader = "scs-version"
	apiVersion       = "2"
)

// Client issues requests against the heatmap provider.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration. The token is read-only shared
// state acquired once at startup; an expired token surfaces as an auth
// error and aborts the run.
type Config struct {
	// BaseURL is the provider base URL, without trailing slash.
	BaseURL string

	// Token is the OAuth2 bearer token string.
	Token string

	// MaxTilesPerRequest bounds the tiles query parameter count per call.
	MaxTilesPerRequest int

	// Timeout bounds each HTTP call.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration for the given token.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		Token:              token,
		MaxTilesPerRequest: 100,
		Timeout:            30 * time.Second,
	}
}

// New creates a new provider client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if cfg.MaxTilesPerRequest <= 0 {
		return nil, fmt.Errorf("max tiles per request must be positive (got %d)", cfg.MaxTilesPerRequest)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("heatmap-client"),
	}, nil
}

// MaxTilesPerRequest returns the configured per-call tile limit.
func (c *Client) MaxTilesPerRequest() int {
	return c.config.MaxTilesPerRequest
}

// providerResponse is the wire shape shared by all endpoints. A non-zero
// Status signals a provider error even under HTTP 200.
type providerResponse struct {
	Tiles   []heatmap.RawTile `json:"tiles"`
	Status  int               `json:"status,omitempty"`
	Message string            `json:"message,omitempty"`
}

// FetchTiles fetches the tile grid for one municipality.
func (c *Client) FetchTiles(ctx context.Context, municipalityID int32) ([]heatmap.RawTile, error) {
	path := fmt.Sprintf("/grids/municipalities/%d", municipalityID)
	return c.get(ctx, "grid", path, nil)
}

// Fetch issues one measurement request for one (batch, timestamp) pair.
// The timestamp addresses the request path: hourly kinds use the full
// ISO-8601 timestamp, daily kinds the date only. Tiles the provider
// suppressed are simply absent from the result; that is a valid empty
// result, not an error.
func (c *Client) Fetch(ctx context.Context, kind heatmap.Kind, tiles []int64, ts time.Time) ([]heatmap.RawTile, error) {
	var endpoint string
	switch kind {
	case heatmap.KindDailyDensity:
		endpoint = "heatmaps/dwell-density/daily/" + ts.Format(heatmap.DateLayout)
	case heatmap.KindHourlyDensity:
		endpoint = "heatmaps/dwell-density/hourly/" + ts.Format(heatmap.TimestampLayout)
	case heatmap.KindDailyDemographics:
		endpoint = "heatmaps/dwell-demographics/daily/" + ts.Format(heatmap.DateLayout)
	case heatmap.KindHourlyDemographics:
		endpoint = "heatmaps/dwell-demographics/hourly/" + ts.Format(heatmap.TimestampLayout)
	default:
		return nil, fmt.Errorf("kind %q has no measurement endpoint", kind)
	}

	if len(tiles) > c.config.MaxTilesPerRequest {
		return nil, fmt.Errorf("batch of %d tiles exceeds limit %d", len(tiles), c.config.MaxTilesPerRequest)
	}

	query := make(url.Values, 1)
	for _, id := range tiles {
		query.Add("tiles", strconv.FormatInt(id, 10))
	}

	return c.get(ctx, string(kind), "/"+endpoint, query)
}

// get performs one GET with retries and parses the shared response shape.
func (c *Client) get(ctx context.Context, endpointLabel, path string, query url.Values) ([]heatmap.RawTile, error) {
	reqURL := c.config.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpointLabel).Observe(time.Since(startTime).Seconds())
	}()

	var tiles []heatmap.RawTile
	err := retryWithBackoff(ctx, func() error {
		var attemptErr error
		tiles, attemptErr = c.doOnce(ctx, endpointLabel, reqURL)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return tiles, nil
}

// doOnce performs a single attempt: request, status classification, parse.
func (c *Client) doOnce(ctx context.Context, endpointLabel, reqURL string) ([]heatmap.RawTile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set(apiVersionHeader, apiVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpointLabel).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpointLabel, "network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpointLabel, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classForStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().
			Str("endpoint", endpointLabel).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Provider request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    providerMessage(body, resp.Status),
		}
	}

	var parsed providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassParse)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassParse,
			Message:    "malformed response body",
			Err:        err,
		}
	}

	// Some endpoints report errors in the body under HTTP 200.
	if parsed.Status != 0 && parsed.Status >= 400 {
		class := classForStatus(parsed.Status)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpointLabel).
			Int("status_code", parsed.Status).
			Str("error_class", string(class)).
			Str("message", parsed.Message).
			Msg("Provider reported error in response body")
		return nil, &APIError{
			StatusCode: parsed.Status,
			Class:      class,
			Message:    parsed.Message,
		}
	}

	// An empty or partial tiles array under 2xx is k-anonymization
	// suppression, a valid result.
	return parsed.Tiles, nil
}

// providerMessage extracts the provider's message from an error body,
// falling back to the HTTP status line.
func providerMessage(body []byte, fallback string) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return fallback
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
