package pead

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NewEvent builds an event from a symbol, an ISO calendar date and a surprise.
// Surrounding whitespace is trimmed and the symbol is upper-cased.
func NewEvent(instrument, date string, surprise float64) (EarningsEvent, error) {
	instrument = strings.ToUpper(strings.TrimSpace(instrument))
	if instrument == "" {
		return EarningsEvent{}, eventError(-1, "instrument", instrument, "must not be empty")
	}

	eventDate, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return EarningsEvent{}, eventError(-1, "date", date, "expected YYYY-MM-DD")
	}

	if math.IsNaN(surprise) || math.IsInf(surprise, 0) {
		return EarningsEvent{}, eventError(-1, "surprise", strconv.FormatFloat(surprise, 'g', -1, 64), "must be a finite number")
	}

	return EarningsEvent{
		Instrument: instrument,
		EventDate:  eventDate,
		Surprise:   surprise,
	}, nil
}

// ParseEvent is NewEvent for textual input such as CSV cells
func ParseEvent(instrument, date, surprise string) (EarningsEvent, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(surprise), 64)
	if err != nil {
		return EarningsEvent{}, eventError(-1, "surprise", surprise, "must be numeric")
	}
	return NewEvent(instrument, date, value)
}

// ValidateEvents checks every event before a run starts so that a contract
// violation aborts the run without any price data being requested.
func ValidateEvents(events []EarningsEvent) error {
	for i, ev := range events {
		if strings.TrimSpace(ev.Instrument) == "" {
			return eventError(i, "instrument", ev.Instrument, "must not be empty")
		}
		if ev.EventDate.IsZero() {
			return eventError(i, "date", "", "must be set")
		}
		if math.IsNaN(ev.Surprise) || math.IsInf(ev.Surprise, 0) {
			return eventError(i, "surprise", strconv.FormatFloat(ev.Surprise, 'g', -1, 64), "must be a finite number")
		}
	}
	return nil
}

// WithIndex returns a copy of a validation error positioned at index.
// Other errors are returned unchanged.
func WithIndex(err error, index int) error {
	if ve, ok := err.(*ValidationError); ok {
		cp := *ve
		cp.Index = index
		return &cp
	}
	return err
}

// DefaultConfig holds 10 sessions after a surprise of at least 10%, against SPY
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		HoldDays:            10,
		MinSurprise:         0.10,
		BenchmarkInstrument: "SPY",
		BufferMultiplier:    2,
		Concurrency:         4,
	}
}

// Validate checks run parameters
func (c BacktestConfig) Validate() error {
	if c.HoldDays < 1 {
		return paramError("hold_days", strconv.Itoa(c.HoldDays), "must be at least 1")
	}
	if strings.TrimSpace(c.BenchmarkInstrument) == "" {
		return paramError("benchmark_instrument", c.BenchmarkInstrument, "must not be empty")
	}
	if c.BufferMultiplier < 1 {
		return paramError("buffer_multiplier", strconv.Itoa(c.BufferMultiplier), "must be at least 1")
	}
	if math.IsNaN(c.MinSurprise) || math.IsInf(c.MinSurprise, 0) {
		return paramError("min_surprise", strconv.FormatFloat(c.MinSurprise, 'g', -1, 64), "must be a finite number")
	}
	return nil
}
