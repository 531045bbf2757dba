package kite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pead-backtest/internal/logger"
	"pead-backtest/internal/research/pead"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

const (
	DefaultExchange = "NSE"
	dayInterval     = "day"
)

var ErrUnknownSymbol = errors.New("kite: unknown trading symbol")

// HistoricalClient is the subset of the Kite Connect client used for
// backtesting. *kiteconnect.Client satisfies it.
type HistoricalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
}

// Provider serves daily candles from Kite Connect. Kite returns prices as
// traded, without split or dividend adjustment.
type Provider struct {
	client   HistoricalClient
	exchange string
	mapper   *instrumentMapper

	loadMu sync.Mutex
	loaded bool
}

// New creates a provider backed by an authenticated Kite Connect client
func New(apiKey, accessToken, exchange string) *Provider {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return NewWithClient(kc, exchange)
}

// NewWithClient creates a provider over any HistoricalClient
func NewWithClient(client HistoricalClient, exchange string) *Provider {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Provider{
		client:   client,
		exchange: exchange,
		mapper:   newInstrumentMapper(),
	}
}

func (p *Provider) Name() string { return "KITE" }

// loadInstruments fetches the exchange instrument list until one load
// succeeds. A failed or abandoned load is retried by the next caller.
func (p *Provider) loadInstruments(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.loaded {
		return nil
	}

	type result struct {
		instruments kiteconnect.Instruments
		err         error
	}
	done := make(chan result, 1)
	go func() {
		instruments, err := p.client.GetInstrumentsByExchange(p.exchange)
		done <- result{instruments, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return fmt.Errorf("kite: load %s instruments: %w", p.exchange, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		logger.Warn(ctx, "Kite instrument load failed", "exchange", p.exchange, "error", res.err)
		return fmt.Errorf("kite: load %s instruments: %w", p.exchange, res.err)
	}

	for _, inst := range res.instruments {
		p.mapper.addMapping(inst.Tradingsymbol, inst.InstrumentToken)
	}
	p.loaded = true
	logger.Info(ctx, "Kite instruments loaded", "exchange", p.exchange, "count", p.mapper.size())
	return nil
}

// DailyBars fetches day candles for symbol between from and to
func (p *Provider) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]pead.DailyPriceBar, error) {
	if err := p.loadInstruments(ctx); err != nil {
		return nil, err
	}

	token, ok := p.mapper.getToken(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownSymbol, symbol, p.exchange)
	}

	// The Kite client has no context support; the call is abandoned rather
	// than cancelled when ctx ends first.
	type result struct {
		candles []kiteconnect.HistoricalData
		err     error
	}
	done := make(chan result, 1)
	go func() {
		candles, err := p.client.GetHistoricalData(token, dayInterval, from, to.Add(24*time.Hour-time.Second), false, false)
		done <- result{candles, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("kite %s: %w", p.mapper.getSymbol(token), res.err)
	}

	bars := make([]pead.DailyPriceBar, 0, len(res.candles))
	for _, c := range res.candles {
		bars = append(bars, pead.DailyPriceBar{
			Date:  c.Date.Time,
			Open:  c.Open,
			Close: c.Close,
		})
	}
	return bars, nil
}
