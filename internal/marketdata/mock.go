package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"pead-backtest/internal/research/pead"
)

// MockProvider generates a deterministic weekday price series per symbol.
// A given symbol and date always produce the same bar, whatever range is
// requested.
type MockProvider struct {
	holidays    map[string]bool
	unavailable map[string]bool
}

// MockOption configures a MockProvider
type MockOption func(*MockProvider)

// WithHolidays removes the given dates from every series
func WithHolidays(dates ...time.Time) MockOption {
	return func(m *MockProvider) {
		for _, d := range dates {
			m.holidays[d.Format(pead.DateLayout)] = true
		}
	}
}

// WithUnavailable makes DailyBars fail for the given symbols
func WithUnavailable(symbols ...string) MockOption {
	return func(m *MockProvider) {
		for _, s := range symbols {
			m.unavailable[strings.ToUpper(s)] = true
		}
	}
}

func NewMockProvider(opts ...MockOption) *MockProvider {
	m := &MockProvider{
		holidays:    make(map[string]bool),
		unavailable: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockProvider) Name() string { return "MOCK" }

func (m *MockProvider) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]pead.DailyPriceBar, error) {
	sym := strings.ToUpper(symbol)
	if m.unavailable[sym] {
		return nil, fmt.Errorf("mock: no data for %s", symbol)
	}

	seed := hashString(sym)
	base := 50 + float64(seed%400)
	phase := float64(seed%360) * math.Pi / 180

	var bars []pead.DailyPriceBar
	for d := dayOf(from); !d.After(dayOf(to)); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		key := d.Format(pead.DateLayout)
		if m.holidays[key] {
			continue
		}

		days := float64(d.Unix() / 86400)
		trend := base * (1 + 0.08*math.Sin(days/23+phase))
		h := hashString(sym + key)
		openNoise := (float64(h%1000)/1000 - 0.5) * 0.02
		closeNoise := (float64((h/1000)%1000)/1000 - 0.5) * 0.02

		bars = append(bars, pead.DailyPriceBar{
			Date:  d,
			Open:  pead.Round2(trend * (1 + openNoise)),
			Close: pead.Round2(trend * (1 + closeNoise)),
		})
	}
	return bars, nil
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
