package pead

import (
	"context"
	"time"
)

// DateLayout is the calendar date format used for event input and report output.
const DateLayout = "2006-01-02"

// EarningsEvent is one earnings announcement supplied by the caller
type EarningsEvent struct {
	Instrument string    `json:"instrument"`
	EventDate  time.Time `json:"event_date"`
	Surprise   float64   `json:"surprise"` // fractional EPS surprise, 0.15 = +15%
}

// DailyPriceBar is one trading session. Series are strictly increasing by
// date and contain no entries for days the market was closed.
type DailyPriceBar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	Close float64   `json:"close"`
}

// PriceSeriesGateway returns adjusted daily bars for an inclusive calendar
// range. Any failure is reported as an empty series, never as an error.
type PriceSeriesGateway interface {
	Fetch(ctx context.Context, instrument string, start, end time.Time) []DailyPriceBar
}

// HoldingWindow is the calendar range queried for one event
type HoldingWindow struct {
	EntryBoundary time.Time `json:"entry_boundary"`
	QueryEnd      time.Time `json:"query_end"`
}

// BacktestResult is one output row. BenchmarkReturnPct and AlphaPct are nil
// when the benchmark series was empty or too short.
type BacktestResult struct {
	Instrument         string    `json:"instrument"`
	EntryDate          time.Time `json:"entry_date"`
	ExitDate           time.Time `json:"exit_date"`
	EntryPrice         float64   `json:"entry_price"`
	ExitPrice          float64   `json:"exit_price"`
	ReturnPct          float64   `json:"return_pct"`
	BenchmarkReturnPct *float64  `json:"benchmark_return_pct"`
	AlphaPct           *float64  `json:"alpha_pct"`
}

// Outcome classifies what happened to a single event
type Outcome string

const (
	OutcomeEmitted          Outcome = "EMITTED"
	OutcomeBelowThreshold   Outcome = "BELOW_THRESHOLD"
	OutcomeInsufficientData Outcome = "INSUFFICIENT_DATA"
)

// EventOutcome is the per-event diagnostic handed to an OutcomeRecorder
type EventOutcome struct {
	RunID              string          `json:"run_id"`
	Index              int             `json:"index"`
	Event              EarningsEvent   `json:"event"`
	Window             HoldingWindow   `json:"window"`
	Outcome            Outcome         `json:"outcome"`
	InstrumentBars     int             `json:"instrument_bars"`
	BenchmarkBars      int             `json:"benchmark_bars"`
	BenchmarkAvailable bool            `json:"benchmark_available"`
	Result             *BacktestResult `json:"result,omitempty"`
}

// OutcomeRecorder receives every event outcome of a run, in completion order.
// Implementations must be safe for concurrent use.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome EventOutcome)
}

// BacktestConfig holds the parameters of one backtest run
type BacktestConfig struct {
	// Number of trading sessions held, counted from the entry session
	HoldDays int `json:"hold_days" yaml:"hold_days"`

	// Events with a surprise below this fraction are ignored
	MinSurprise float64 `json:"min_surprise" yaml:"min_surprise"`

	// Symbol used for the excess-return comparison
	BenchmarkInstrument string `json:"benchmark_instrument" yaml:"benchmark_instrument"`

	// Calendar days queried per held trading day
	BufferMultiplier int `json:"buffer_multiplier" yaml:"buffer_multiplier"`

	// Maximum number of events processed at once
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// Diagnostics counts why events did or did not produce rows
type Diagnostics struct {
	FilteredBySignificance int `json:"filtered_by_significance"`
	InsufficientData       int `json:"insufficient_data"`
	BenchmarkUnavailable   int `json:"benchmark_unavailable"`
}

// Summary holds descriptive statistics over the emitted rows
type Summary struct {
	MeanReturnPct     float64  `json:"mean_return_pct"`
	MeanBenchmarkPct  *float64 `json:"mean_benchmark_return_pct"`
	MeanAlphaPct      *float64 `json:"mean_alpha_pct"`
	PositiveAlphaRate *float64 `json:"positive_alpha_rate"`
}

// RunResult is everything produced by one backtest run
type RunResult struct {
	RunID       string           `json:"run_id"`
	RunDate     time.Time        `json:"run_date"`
	Config      BacktestConfig   `json:"config"`
	TotalEvents int              `json:"total_events"`
	Results     []BacktestResult `json:"results"`
	Diagnostics Diagnostics      `json:"diagnostics"`
	Summary     Summary          `json:"summary"`
}
