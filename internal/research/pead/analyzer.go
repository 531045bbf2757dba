package pead

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pead-backtest/internal/logger"
	"pead-backtest/internal/trace"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Engine runs event-study backtests over a price series gateway
type Engine struct {
	config   BacktestConfig
	gateway  PriceSeriesGateway
	recorder OutcomeRecorder
	now      func() time.Time
	newRunID func() string
}

// Option customises an Engine
type Option func(*Engine)

// WithRecorder sends every event outcome to r
func WithRecorder(r OutcomeRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock overrides the run timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunID overrides run id generation
func WithRunID(newID func() string) Option {
	return func(e *Engine) { e.newRunID = newID }
}

// NewEngine creates a backtest engine
func NewEngine(config BacktestConfig, gateway PriceSeriesGateway, opts ...Option) *Engine {
	e := &Engine{
		config:   config,
		gateway:  gateway,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the run parameters
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// evaluation is the per-event slot filled by a worker
type evaluation struct {
	outcome          Outcome
	result           *BacktestResult
	benchmarkMissing bool
}

// Run backtests events and returns one row per significant event with
// enough price history, in input order. Parameter and event validation
// failures abort the run before any prices are requested. Missing or short
// price series never fail the run; they are counted in the diagnostics.
func (e *Engine) Run(ctx context.Context, events []EarningsEvent) (*RunResult, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if e.gateway == nil {
		return nil, paramError("gateway", "", "must not be nil")
	}
	if err := ValidateEvents(events); err != nil {
		return nil, err
	}

	runID := e.newRunID()
	logger.Info(ctx, "Backtest run started",
		"run_id", runID,
		"events", len(events),
		"hold_days", e.config.HoldDays,
		"min_surprise", e.config.MinSurprise,
		"benchmark", e.config.BenchmarkInstrument)

	limit := e.config.Concurrency
	if limit < 1 {
		limit = 1
	}

	slots := make([]evaluation, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ev := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = e.evaluate(gctx, runID, i, ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backtest run %s interrupted: %w", runID, err)
	}
	// Workers that finished after cancellation saw empty series, so their
	// slots cannot be trusted.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backtest run %s interrupted: %w", runID, err)
	}

	run := &RunResult{
		RunID:       runID,
		RunDate:     e.now(),
		Config:      e.config,
		TotalEvents: len(events),
		Results:     make([]BacktestResult, 0, len(events)),
	}
	for _, slot := range slots {
		switch slot.outcome {
		case OutcomeBelowThreshold:
			run.Diagnostics.FilteredBySignificance++
		case OutcomeInsufficientData:
			run.Diagnostics.InsufficientData++
		case OutcomeEmitted:
			run.Results = append(run.Results, *slot.result)
			if slot.benchmarkMissing {
				run.Diagnostics.BenchmarkUnavailable++
			}
		}
	}
	run.Summary = Summarize(run.Results)

	logger.Info(ctx, "Backtest run completed",
		"run_id", runID,
		"rows", len(run.Results),
		"filtered_by_significance", run.Diagnostics.FilteredBySignificance,
		"insufficient_data", run.Diagnostics.InsufficientData,
		"benchmark_unavailable", run.Diagnostics.BenchmarkUnavailable)

	return run, nil
}

func (e *Engine) evaluate(ctx context.Context, runID string, index int, ev EarningsEvent) evaluation {
	ctx, span := trace.StartSpan(ctx, "pead.evaluate_event")
	defer span.End()
	span.SetAttributes(trace.Attributes("symbol", ev.Instrument, "index", index)...)

	window := NewHoldingWindow(ev.EventDate, e.config.HoldDays, e.config.BufferMultiplier)
	record := EventOutcome{
		RunID:  runID,
		Index:  index,
		Event:  ev,
		Window: window,
	}

	if ev.Surprise < e.config.MinSurprise {
		logger.Skip(ctx, ev.Instrument, string(OutcomeBelowThreshold),
			"surprise", ev.Surprise,
			"min_surprise", e.config.MinSurprise)
		record.Outcome = OutcomeBelowThreshold
		e.record(ctx, record)
		return evaluation{outcome: OutcomeBelowThreshold}
	}

	bars := e.gateway.Fetch(ctx, ev.Instrument, window.EntryBoundary, window.QueryEnd)
	record.InstrumentBars = len(bars)

	pos, ok := selectPosition(bars, e.config.HoldDays)
	if !ok {
		logger.Skip(ctx, ev.Instrument, string(OutcomeInsufficientData),
			"event_date", ev.EventDate.Format(DateLayout),
			"bars", len(bars),
			"required", e.config.HoldDays)
		record.Outcome = OutcomeInsufficientData
		e.record(ctx, record)
		return evaluation{outcome: OutcomeInsufficientData}
	}

	result := &BacktestResult{
		Instrument: ev.Instrument,
		EntryDate:  pos.entryDate,
		ExitDate:   pos.exitDate,
		EntryPrice: Round2(pos.entryPrice),
		ExitPrice:  Round2(pos.exitPrice),
		ReturnPct:  pos.returnPct,
	}

	benchBars := e.gateway.Fetch(ctx, e.config.BenchmarkInstrument, window.EntryBoundary, window.QueryEnd)
	record.BenchmarkBars = len(benchBars)

	benchPos, benchOK := selectPosition(benchBars, e.config.HoldDays)
	if benchOK {
		benchmark := benchPos.returnPct
		alpha := AlphaPct(pos.returnPct, benchmark)
		result.BenchmarkReturnPct = &benchmark
		result.AlphaPct = &alpha
	} else {
		logger.Warn(ctx, "Benchmark series unavailable, emitting row without alpha",
			"symbol", ev.Instrument,
			"benchmark", e.config.BenchmarkInstrument,
			"bars", len(benchBars))
	}

	record.Outcome = OutcomeEmitted
	record.BenchmarkAvailable = benchOK
	record.Result = result
	e.record(ctx, record)

	return evaluation{
		outcome:          OutcomeEmitted,
		result:           result,
		benchmarkMissing: !benchOK,
	}
}

func (e *Engine) record(ctx context.Context, outcome EventOutcome) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, outcome)
}

// Summarize computes descriptive statistics over result rows. Benchmark and
// alpha statistics consider only rows where the benchmark was available and
// are nil when no such row exists.
func Summarize(results []BacktestResult) Summary {
	var s Summary
	if len(results) == 0 {
		return s
	}

	sumReturn := decimal.Zero
	sumBench := decimal.Zero
	sumAlpha := decimal.Zero
	withBench := 0
	positive := 0

	for _, r := range results {
		sumReturn = sumReturn.Add(decimal.NewFromFloat(r.ReturnPct))
		if r.BenchmarkReturnPct == nil || r.AlphaPct == nil {
			continue
		}
		withBench++
		sumBench = sumBench.Add(decimal.NewFromFloat(*r.BenchmarkReturnPct))
		sumAlpha = sumAlpha.Add(decimal.NewFromFloat(*r.AlphaPct))
		if *r.AlphaPct > 0 {
			positive++
		}
	}

	s.MeanReturnPct = sumReturn.Div(decimal.NewFromInt(int64(len(results)))).Round(2).InexactFloat64()
	if withBench > 0 {
		n := decimal.NewFromInt(int64(withBench))
		meanBench := sumBench.Div(n).Round(2).InexactFloat64()
		meanAlpha := sumAlpha.Div(n).Round(2).InexactFloat64()
		rate := decimal.NewFromInt(int64(positive)).Div(n).Round(4).InexactFloat64()
		s.MeanBenchmarkPct = &meanBench
		s.MeanAlphaPct = &meanAlpha
		s.PositiveAlphaRate = &rate
	}
	return s
}

// IsValidation reports whether err is a caller contract violation
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrInvalidParams)
}
