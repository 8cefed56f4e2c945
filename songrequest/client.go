// Package songrequest turns a channel member's free-text query into a lookup
// against the web application's queue API and a single reply line.
package songrequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/syaihu/Thunderirc-Radio/telemetry"
)

// DefaultMaxResponseBytes caps how much of a lookup response is read.
const DefaultMaxResponseBytes = 1 << 20

// ErrUnexpectedStatus is returned for non-2xx lookup responses.
var ErrUnexpectedStatus = errors.New("songrequest: unexpected status")

// Track is the matched track in a successful lookup.
type Track struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Result is the lookup API response.
type Result struct {
	Success bool   `json:"success"`
	Track   *Track `json:"track,omitempty"`
	Message string `json:"message,omitempty"`
}

type lookupRequest struct {
	Username string `json:"username"`
	Query    string `json:"query"`
}

// Client posts song requests to the lookup endpoint.
type Client struct {
	Endpoint         string
	HTTPClient       *http.Client
	MaxResponseBytes int64
	Logger           *slog.Logger
}

// NewClient returns a Client whose transport is traced with otelhttp.
func NewClient(endpoint string, logger *slog.Logger) *Client {
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Logger:     logger,
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Lookup sends {username, query} and decodes the response. The caller's
// context bounds the whole exchange.
func (c *Client) Lookup(ctx context.Context, username, query string) (*Result, error) {
	body, err := json.Marshal(lookupRequest{Username: username, Query: query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if corr := telemetry.GetCorrelation(ctx); corr != "" {
		req.Header.Set("X-Correlation-ID", corr)
	}

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger().Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	limit := c.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, limit)).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	return &res, nil
}
