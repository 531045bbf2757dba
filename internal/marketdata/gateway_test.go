package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"pead-backtest/internal/research/pead"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	bars  []pead.DailyPriceBar
	err   error
	block bool
	calls int
}

func (f *fakeProvider) Name() string { return "FAKE" }

func (f *fakeProvider) DailyBars(ctx context.Context, _ string, _, _ time.Time) ([]pead.DailyPriceBar, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.bars, f.err
}

func date(s string) time.Time {
	t, _ := time.Parse(pead.DateLayout, s)
	return t
}

func TestGatewayNormalizesSeries(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	p := &fakeProvider{bars: []pead.DailyPriceBar{
		{Date: date("2024-01-30"), Open: 3, Close: 3.5},
		{Date: date("2024-01-25"), Open: 1, Close: 1.5}, // before range
		{Date: date("2024-01-26"), Open: 2, Close: 2.5},
		{Date: date("2024-01-29"), Open: 0, Close: 2.9}, // unusable open
		{Date: date("2024-01-30"), Open: 9, Close: 9.5}, // duplicate
		{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, ist), Open: 4, Close: 4.5},
		{Date: date("2024-02-02"), Open: 5, Close: 5.5}, // after range
	}}

	got := NewGateway(p).Fetch(context.Background(), "AAPL", date("2024-01-26"), date("2024-02-01"))

	require.Len(t, got, 3)
	assert.Equal(t, date("2024-01-26"), got[0].Date)
	assert.Equal(t, date("2024-01-30"), got[1].Date)
	assert.Equal(t, 3.0, got[1].Open)
	assert.Equal(t, date("2024-01-31"), got[2].Date)
}

func TestGatewayIncludesRangeEnds(t *testing.T) {
	p := &fakeProvider{bars: []pead.DailyPriceBar{
		{Date: date("2024-01-26"), Open: 1, Close: 1},
		{Date: date("2024-02-15"), Open: 2, Close: 2},
	}}

	got := NewGateway(p).Fetch(context.Background(), "AAPL", date("2024-01-26"), date("2024-02-15"))

	assert.Len(t, got, 2)
}

func TestGatewayAbsorbsProviderErrors(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}

	got := NewGateway(p).Fetch(context.Background(), "NOPE", date("2024-01-26"), date("2024-02-15"))

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGatewayTimesOut(t *testing.T) {
	p := &fakeProvider{block: true}
	g := NewGateway(p, WithFetchTimeout(20*time.Millisecond))

	start := time.Now()
	got := g.Fetch(context.Background(), "SLOW", date("2024-01-26"), date("2024-02-15"))

	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGatewayInvertedRange(t *testing.T) {
	p := &fakeProvider{}

	got := NewGateway(p).Fetch(context.Background(), "AAPL", date("2024-02-15"), date("2024-01-26"))

	assert.Empty(t, got)
	assert.Zero(t, p.calls)
}

func TestGatewayRateLimiterHonoursCancellation(t *testing.T) {
	p := &fakeProvider{bars: []pead.DailyPriceBar{{Date: date("2024-01-26"), Open: 1, Close: 1}}}
	g := NewGateway(p, WithRateLimit(1))

	first := g.Fetch(context.Background(), "AAPL", date("2024-01-26"), date("2024-01-26"))
	require.Len(t, first, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := g.Fetch(ctx, "AAPL", date("2024-01-26"), date("2024-01-26"))

	assert.Empty(t, second)
	assert.Equal(t, 1, p.calls)
}

func TestMockProviderIsDeterministic(t *testing.T) {
	m := NewMockProvider(WithHolidays(date("2024-02-19")), WithUnavailable("delisted"))
	ctx := context.Background()

	wide, err := m.DailyBars(ctx, "AAPL", date("2024-02-01"), date("2024-02-29"))
	require.NoError(t, err)
	narrow, err := m.DailyBars(ctx, "aapl", date("2024-02-12"), date("2024-02-16"))
	require.NoError(t, err)

	require.Len(t, narrow, 5)
	for _, b := range narrow {
		assert.NotEqual(t, time.Saturday, b.Date.Weekday())
		assert.NotEqual(t, time.Sunday, b.Date.Weekday())
		assert.Greater(t, b.Open, 0.0)
	}

	byDate := make(map[time.Time]pead.DailyPriceBar)
	for _, b := range wide {
		byDate[b.Date] = b
		assert.NotEqual(t, date("2024-02-19"), b.Date)
	}
	for _, b := range narrow {
		assert.Equal(t, byDate[b.Date], b)
	}

	_, err = m.DailyBars(ctx, "DELISTED", date("2024-02-01"), date("2024-02-29"))
	assert.Error(t, err)
}
