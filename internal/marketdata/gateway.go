package marketdata

import (
	"context"
	"sort"
	"time"

	"pead-backtest/internal/logger"
	"pead-backtest/internal/research/pead"

	"golang.org/x/time/rate"
)

const defaultFetchTimeout = 30 * time.Second

// Gateway adapts a Provider to pead.PriceSeriesGateway. Every failure
// (unknown symbol, network error, timeout, rate limiter cancellation) is
// logged and turned into an empty series.
type Gateway struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithRateLimit caps provider calls at rps per second. Zero disables limiting.
func WithRateLimit(rps int) GatewayOption {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
}

// WithFetchTimeout bounds each provider call
func WithFetchTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGateway wraps provider
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		timeout:  defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch returns bars with start <= date <= end, ascending, one per date
func (g *Gateway) Fetch(ctx context.Context, instrument string, start, end time.Time) []pead.DailyPriceBar {
	if end.Before(start) {
		return []pead.DailyPriceBar{}
	}

	op := logger.StartOperation(ctx, "marketdata.fetch",
		"provider", g.provider.Name(),
		"symbol", instrument,
		"from", start.Format(pead.DateLayout),
		"to", end.Format(pead.DateLayout))
	ctx = op.GetContext()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			op.EndWithError(err, "stage", "rate_limit")
			return []pead.DailyPriceBar{}
		}
	}

	bars, err := g.provider.DailyBars(ctx, instrument, start, end)
	if err != nil {
		op.EndWithError(err)
		return []pead.DailyPriceBar{}
	}

	out := normalize(bars, start, end)
	op.End("bars", len(out), "dropped", len(bars)-len(out))
	return out
}

// normalize keeps bars inside the inclusive range with usable prices, sorts
// them by date and keeps the first bar of any duplicated date.
func normalize(bars []pead.DailyPriceBar, start, end time.Time) []pead.DailyPriceBar {
	from := dayOf(start)
	to := dayOf(end)

	out := make([]pead.DailyPriceBar, 0, len(bars))
	for _, b := range bars {
		d := dayOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		if b.Open <= 0 || b.Close <= 0 {
			continue
		}
		b.Date = d
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	deduped := out[:0]
	for i, b := range out {
		if i > 0 && b.Date.Equal(deduped[len(deduped)-1].Date) {
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
