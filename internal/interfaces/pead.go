package interfaces

import (
	"context"

	"pead-backtest/internal/research/pead"
)

// Backtester runs a post-earnings drift event study over a list of events
type Backtester interface {
	// Run returns one row per significant event with enough price history
	Run(ctx context.Context, events []pead.EarningsEvent) (*pead.RunResult, error)

	// Config returns the parameters every run uses
	Config() pead.BacktestConfig
}
