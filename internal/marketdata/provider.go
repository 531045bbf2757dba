package marketdata

import (
	"context"
	"time"

	"pead-backtest/internal/research/pead"
)

// Provider is a source of daily bars. Unlike the gateway, a provider reports
// failures as errors.
type Provider interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]pead.DailyPriceBar, error)
}
