// Package fetch provides market data acquisition: a REST client for
// historical candles, a websocket stream for live updates and a manager
// fanning updates out to subscribers.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/tidwall/gjson"
)

// ClientConfig represents the configuration for the exchange REST client.
type ClientConfig struct {
	// BaseURL is the exchange REST API base url.
	BaseURL string
	// APIKey is the exchange API key.
	APIKey string
}

// Validate asserts the config has sane inputs.
func (cfg *ClientConfig) Validate() error {
	var errs error

	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("base url cannot be an empty string"))
	}
	if cfg.APIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("api key cannot be an empty string"))
	}

	return errs
}

// Client represents the exchange REST API client. It is safe for
// concurrent use.
type Client struct {
	cfg   *ClientConfig
	httpc http.Client
}

// Ensure the Client implements the CandleFetcher interface.
var _ shared.CandleFetcher = (*Client)(nil)

// NewClient initializes a new exchange REST client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}, nil
}

// formURL creates full urls including parameters for the api.
func (c *Client) formURL(path string, params string) string {
	var buf bytes.Buffer
	buf.Grow(len(c.cfg.BaseURL) + len(path) + len(params) + 1)
	buf.WriteString(c.cfg.BaseURL)
	buf.WriteString(path)
	buf.WriteString("?")
	buf.WriteString(params)

	return buf.String()
}

// FetchCandles fetches historical candle data for the provided market and range.
func (c *Client) FetchCandles(ctx context.Context, market string, timeframe shared.Timeframe, start time.Time, end time.Time) ([]gjson.Result, error) {
	const candlesPath = "/candles"

	params := url.Values{}
	params.Add("symbol", market)
	params.Add("interval", timeframe.String())
	params.Add("apikey", c.cfg.APIKey)
	params.Add("from", start.Format(shared.DateLayout))
	if !end.IsZero() {
		params.Add("to", end.Format(shared.DateLayout))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(candlesPath, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating candle request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candle data (%s) for %s: %w", timeframe.String(), market, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching candle data for %s: status %d", market, resp.StatusCode)
	}

	data := gjson.ParseBytes(body).Array()

	return data, nil
}
