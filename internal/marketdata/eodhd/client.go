package eodhd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pead-backtest/internal/api"
	"pead-backtest/internal/research/pead"
)

const (
	DefaultBaseURL        = "https://eodhd.com/api"
	DefaultExchangeSuffix = "US"
)

// EODData is one end-of-day record as returned by /eod/{symbol}
type EODData struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// Client is an EODHD end-of-day API client
type Client struct {
	http           *api.Client
	apiKey         string
	exchangeSuffix string
	retry          *api.RetryConfig
}

type ClientOption func(*clientSettings)

type clientSettings struct {
	baseURL        string
	exchangeSuffix string
	httpClient     *http.Client
	retry          *api.RetryConfig
}

// WithBaseURL points the client at another host, e.g. a test server
func WithBaseURL(baseURL string) ClientOption {
	return func(s *clientSettings) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithExchangeSuffix sets the exchange appended to bare tickers
func WithExchangeSuffix(suffix string) ClientOption {
	return func(s *clientSettings) {
		if suffix != "" {
			s.exchangeSuffix = strings.ToUpper(suffix)
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(s *clientSettings) { s.httpClient = hc }
}

// WithRetry sets how transient failures are retried. nil disables retries.
func WithRetry(cfg *api.RetryConfig) ClientOption {
	return func(s *clientSettings) { s.retry = cfg }
}

// NewClient creates an EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	s := &clientSettings{
		baseURL:        DefaultBaseURL,
		exchangeSuffix: DefaultExchangeSuffix,
		retry:          &api.RetryConfig{MaxAttempts: 2, InitialWait: 500 * time.Millisecond, MaxWait: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := []api.ClientOption{
		api.WithBaseURL(s.baseURL),
		api.WithHeader("Accept", "application/json"),
		api.WithLogging(true),
	}
	if s.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(s.httpClient))
	}

	return &Client{
		http:           api.NewClient(clientOpts...),
		apiKey:         apiKey,
		exchangeSuffix: s.exchangeSuffix,
		retry:          s.retry,
	}
}

func (c *Client) Name() string { return "EODHD" }

// Ticker maps a bare symbol to EODHD's TICKER.EXCHANGE form
func (c *Client) Ticker(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + c.exchangeSuffix
}

// GetEOD fetches daily records for an inclusive date range, oldest first
func (c *Client) GetEOD(ctx context.Context, symbol string, from, to time.Time) ([]EODData, error) {
	req := api.NewRequest(http.MethodGet, "/eod/"+url.PathEscape(c.Ticker(symbol))).
		WithContext(ctx).
		WithQuery("api_token", c.apiKey).
		WithQuery("fmt", "json").
		WithQuery("period", "d").
		WithQuery("order", "a").
		WithQuery("from", from.Format(pead.DateLayout)).
		WithQuery("to", to.Format(pead.DateLayout))

	var (
		resp *api.Response
		err  error
	)
	if c.retry != nil {
		resp, err = c.http.DoWithRetry(req, c.retry)
	} else {
		resp, err = c.http.Do(req)
	}
	if err != nil {
		return nil, fmt.Errorf("eodhd %s: %w", symbol, err)
	}

	var records []EODData
	if err := resp.ParseJSON(&records); err != nil {
		return nil, fmt.Errorf("eodhd %s: %w", symbol, err)
	}
	return records, nil
}

// DailyBars returns split and dividend adjusted bars. The close is the
// adjusted close and the open is scaled by the same adjustment factor.
func (c *Client) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]pead.DailyPriceBar, error) {
	records, err := c.GetEOD(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	bars := make([]pead.DailyPriceBar, 0, len(records))
	for _, r := range records {
		date, err := time.Parse(pead.DateLayout, r.Date)
		if err != nil {
			continue
		}
		bars = append(bars, adjust(date, r))
	}
	return bars, nil
}

func adjust(date time.Time, r EODData) pead.DailyPriceBar {
	if r.Close <= 0 || r.AdjustedClose <= 0 {
		return pead.DailyPriceBar{Date: date, Open: r.Open, Close: r.Close}
	}
	factor := r.AdjustedClose / r.Close
	return pead.DailyPriceBar{
		Date:  date,
		Open:  r.Open * factor,
		Close: r.AdjustedClose,
	}
}
