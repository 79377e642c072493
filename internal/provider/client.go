package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/irfndi/tickerwall/internal/config"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

const userAgent = "Tickerwall-Go/1.0"

// Client is the HTTP client for the stock series provider.
type Client struct {
	HTTPClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg *config.ProviderConfig) *Client {
	timeout := cfg.TimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		logger:  telemetry.Logger().With("component", "provider"),
	}
	client.logger.Debug("Provider client initialized", "base_url", client.baseURL, "timeout", timeout.String())
	return client
}

// BaseURL returns the provider base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchSeries retrieves the series for ticker over period at interval.
func (c *Client) FetchSeries(ctx context.Context, ticker, period, interval string) (*SeriesResponse, error) {
	q := url.Values{}
	q.Set("period", period)
	q.Set("interval", interval)
	path := fmt.Sprintf("/api/stock/%s?%s", url.PathEscape(ticker), q.Encode())

	var payload seriesPayload
	if err := c.makeRequest(ctx, http.MethodGet, path, &payload); err != nil {
		return nil, err
	}
	return payload.toResponse()
}

func (c *Client) makeRequest(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Error closing response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}
