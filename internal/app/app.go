package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"pead-backtest/internal/api"
	"pead-backtest/internal/events"
	"pead-backtest/internal/interfaces"
	"pead-backtest/internal/logger"
	"pead-backtest/internal/marketdata"
	"pead-backtest/internal/marketdata/eodhd"
	"pead-backtest/internal/marketdata/kite"
	"pead-backtest/internal/research/pead"
	"pead-backtest/internal/research/pead/peadobs"
	"pead-backtest/internal/store"
)

// NewProvider builds the price provider selected by data_source. Credentials
// come from the environment only.
func NewProvider(cfg *store.Config) (marketdata.Provider, error) {
	switch cfg.DataSource {
	case store.DataSourceMock:
		var holidays []time.Time
		for _, h := range cfg.Mock.Holidays {
			d, err := time.Parse(pead.DateLayout, h)
			if err != nil {
				return nil, fmt.Errorf("mock holiday %q: %w", h, err)
			}
			holidays = append(holidays, d)
		}
		return marketdata.NewMockProvider(marketdata.WithHolidays(holidays...)), nil

	case store.DataSourceEODHD:
		key := os.Getenv("EODHD_API_KEY")
		if key == "" {
			return nil, errors.New("EODHD_API_KEY is not set")
		}
		return eodhd.NewClient(key,
			eodhd.WithBaseURL(cfg.EODHD.BaseURL),
			eodhd.WithExchangeSuffix(cfg.EODHD.ExchangeSuffix),
			eodhd.WithRetry(&api.RetryConfig{
				MaxAttempts: cfg.EODHD.MaxAttempts,
				InitialWait: 500 * time.Millisecond,
				MaxWait:     4 * time.Second,
			}),
		), nil

	case store.DataSourceKite:
		apiKey, token := os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN")
		if apiKey == "" || token == "" {
			return nil, errors.New("KITE_API_KEY and KITE_ACCESS_TOKEN must be set")
		}
		return kite.New(apiKey, token, cfg.Kite.Exchange), nil
	}
	return nil, fmt.Errorf("unsupported data source %q", cfg.DataSource)
}

// NewGateway wraps provider with the rate limit and timeout for its source
func NewGateway(ctx context.Context, cfg *store.Config, provider marketdata.Provider) *marketdata.Gateway {
	rps := 0
	switch cfg.DataSource {
	case store.DataSourceEODHD:
		rps = cfg.EODHD.RateLimit
	case store.DataSourceKite:
		rps = cfg.Kite.RateLimit
	}
	gw := marketdata.NewGateway(provider,
		marketdata.WithRateLimit(rps),
		marketdata.WithFetchTimeout(cfg.FetchTimeout()),
	)
	logger.Debug(ctx, "Price gateway ready",
		"provider", provider.Name(),
		"rate_limit", rps,
		"fetch_timeout", cfg.FetchTimeout().String())
	return gw
}

// NewBacktester builds the observable engine. recorder may be nil.
func NewBacktester(bc pead.BacktestConfig, gw pead.PriceSeriesGateway, recorder pead.OutcomeRecorder) interfaces.Backtester {
	var opts []pead.Option
	if recorder != nil {
		opts = append(opts, pead.WithRecorder(recorder))
	}
	return peadobs.Wrap(pead.NewEngine(bc, gw, opts...))
}

// LoadEvents resolves the event list: events_file, then calendar_url, then
// the inline events list
func LoadEvents(ctx context.Context, cfg *store.Config) ([]pead.EarningsEvent, error) {
	switch {
	case cfg.EventsFile != "":
		evs, err := events.LoadFile(cfg.EventsFile)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Events loaded from file", "path", cfg.EventsFile, "count", len(evs))
		return evs, nil

	case cfg.CalendarURL != "":
		scraper := events.NewCalendarScraper(cfg.Calendar, cfg.FetchTimeout())
		res, err := scraper.Scrape(ctx, cfg.CalendarURL)
		if err != nil {
			return nil, err
		}
		return res.Events, nil

	default:
		return events.FromRecords(cfg.Events)
	}
}
