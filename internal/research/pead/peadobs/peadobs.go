package peadobs

import (
	"context"
	"time"

	"pead-backtest/internal/interfaces"
	"pead-backtest/internal/logger"
	"pead-backtest/internal/research/pead"
	"pead-backtest/internal/trace"

	"go.opentelemetry.io/otel/attribute"
)

// observableBacktester wraps Backtester with logging and tracing
type observableBacktester struct {
	inner interfaces.Backtester
}

// Wrap wraps a Backtester with observability middleware
func Wrap(b interfaces.Backtester) interfaces.Backtester {
	return &observableBacktester{inner: b}
}

func (o *observableBacktester) Config() pead.BacktestConfig {
	return o.inner.Config()
}

// Run wraps the Run method with logging and tracing
func (o *observableBacktester) Run(ctx context.Context, events []pead.EarningsEvent) (*pead.RunResult, error) {
	ctx, span := trace.StartSpan(ctx, "pead.Run")
	defer span.End()

	cfg := o.inner.Config()
	span.SetAttributes(
		attribute.Int("event_count", len(events)),
		attribute.Int("hold_days", cfg.HoldDays),
		attribute.String("benchmark", cfg.BenchmarkInstrument),
	)

	logger.InfoSkip(ctx, 1, "Starting PEAD backtest", "event_count", len(events))
	start := time.Now()

	result, err := o.inner.Run(ctx, events)

	duration := time.Since(start)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "PEAD backtest failed", err,
			"event_count", len(events),
			"duration_ms", duration.Milliseconds(),
			"validation", pead.IsValidation(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Int("rows", len(result.Results)),
	)

	fields := []any{
		"run_id", result.RunID,
		"event_count", result.TotalEvents,
		"rows", len(result.Results),
		"filtered_by_significance", result.Diagnostics.FilteredBySignificance,
		"insufficient_data", result.Diagnostics.InsufficientData,
		"benchmark_unavailable", result.Diagnostics.BenchmarkUnavailable,
		"mean_return_pct", result.Summary.MeanReturnPct,
		"duration_ms", duration.Milliseconds(),
	}
	if result.Summary.MeanAlphaPct != nil {
		fields = append(fields, "mean_alpha_pct", *result.Summary.MeanAlphaPct)
	}

	logger.InfoSkip(ctx, 1, "PEAD backtest completed", fields...)

	return result, nil
}
