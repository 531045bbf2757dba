package pead

import (
	"errors"
	"math"
	"testing"
)

func TestNewHoldingWindow(t *testing.T) {
	w := NewHoldingWindow(day("2024-01-25"), 10, 2)
	if !w.EntryBoundary.Equal(day("2024-01-26")) {
		t.Errorf("Expected entry boundary 2024-01-26, got %s", w.EntryBoundary.Format(DateLayout))
	}
	if !w.QueryEnd.Equal(day("2024-02-15")) {
		t.Errorf("Expected query end 2024-02-15, got %s", w.QueryEnd.Format(DateLayout))
	}

	// Friday event: the boundary is a Saturday, the provider skips ahead
	w = NewHoldingWindow(day("2024-02-09"), 5, 3)
	if !w.EntryBoundary.Equal(day("2024-02-10")) || !w.QueryEnd.Equal(day("2024-02-25")) {
		t.Errorf("Unexpected window %s..%s", w.EntryBoundary.Format(DateLayout), w.QueryEnd.Format(DateLayout))
	}
}

func TestReturnPctRounding(t *testing.T) {
	cases := []struct {
		entry, exit, want float64
	}{
		{100, 110, 10.00},
		{400, 413, 3.25},
		{3, 3.1, 3.33},
		{200, 150, -25.00},
		{187.15, 191.94, 2.56},
		{8, 8.0001, 0.00},
	}
	for _, c := range cases {
		if got := ReturnPct(c.entry, c.exit); got != c.want {
			t.Errorf("ReturnPct(%v, %v): expected %v, got %v", c.entry, c.exit, c.want, got)
		}
	}
}

func TestAlphaPct(t *testing.T) {
	if got := AlphaPct(10.00, 3.25); got != 6.75 {
		t.Errorf("Expected 6.75, got %v", got)
	}
	if got := AlphaPct(-1.10, 2.20); got != -3.30 {
		t.Errorf("Expected -3.30, got %v", got)
	}
}

func TestSelectPosition(t *testing.T) {
	bars := series(weekdays("2024-01-26", 3), 10, 12)

	if _, ok := selectPosition(bars, 4); ok {
		t.Error("Expected short series to be rejected")
	}
	if _, ok := selectPosition(nil, 1); ok {
		t.Error("Expected empty series to be rejected")
	}

	pos, ok := selectPosition(bars, 1)
	if !ok {
		t.Fatal("Expected single-session hold to succeed")
	}
	if !pos.entryDate.Equal(pos.exitDate) {
		t.Errorf("Expected same entry and exit session, got %v and %v", pos.entryDate, pos.exitDate)
	}
	if pos.exitPrice != bars[0].Close {
		t.Errorf("Expected exit at first close %v, got %v", bars[0].Close, pos.exitPrice)
	}

	bars[0].Open = 0
	if _, ok := selectPosition(bars, 2); ok {
		t.Error("Expected zero entry price to be rejected")
	}
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(" aapl ", "2024-01-25", 0.15)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ev.Instrument != "AAPL" || !ev.EventDate.Equal(day("2024-01-25")) || ev.Surprise != 0.15 {
		t.Errorf("Unexpected event %+v", ev)
	}

	bad := []struct {
		name       string
		instrument string
		date       string
		surprise   float64
	}{
		{"empty instrument", "", "2024-01-25", 0.1},
		{"slashed date", "AAPL", "01/25/2024", 0.1},
		{"impossible date", "AAPL", "2024-02-30", 0.1},
		{"nan surprise", "AAPL", "2024-01-25", math.NaN()},
		{"infinite surprise", "AAPL", "2024-01-25", math.Inf(1)},
	}
	for _, c := range bad {
		if _, err := NewEvent(c.instrument, c.date, c.surprise); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("%s: expected ErrInvalidEvent, got %v", c.name, err)
		}
	}

	if _, err := ParseEvent("AAPL", "2024-01-25", "abc"); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Expected ErrInvalidEvent for non-numeric surprise, got %v", err)
	}
	if ev, err := ParseEvent("MSFT", "2024-01-30", " 0.12 "); err != nil || ev.Surprise != 0.12 {
		t.Errorf("Expected parsed surprise 0.12, got %v (%v)", ev.Surprise, err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Expected defaults to be valid, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.BenchmarkInstrument = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.BufferMultiplier = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}

	var ve *ValidationError
	err := WithIndex(eventError(-1, "date", "x", "bad"), 4)
	if !errors.As(err, &ve) || ve.Index != 4 {
		t.Errorf("Expected index 4, got %v", err)
	}
}
