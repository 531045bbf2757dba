package pead

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NewHoldingWindow derives the calendar range queried for an event. The
// range spans bufferMultiplier calendar days per held session so that
// weekends and holidays still leave holdDays sessions in most windows.
func NewHoldingWindow(eventDate time.Time, holdDays, bufferMultiplier int) HoldingWindow {
	day := truncateToDay(eventDate)
	entry := day.AddDate(0, 0, 1)
	return HoldingWindow{
		EntryBoundary: entry,
		QueryEnd:      entry.AddDate(0, 0, bufferMultiplier*holdDays),
	}
}

// position is an entry/exit pair selected from a price series
type position struct {
	entryDate  time.Time
	exitDate   time.Time
	entryPrice float64
	exitPrice  float64
	returnPct  float64
}

// selectPosition enters at the open of the first session and exits at the
// close of the holdDays-th session. Sessions are counted by position in the
// series, never by calendar arithmetic. ok is false when the series holds
// fewer than holdDays sessions.
func selectPosition(bars []DailyPriceBar, holdDays int) (position, bool) {
	if holdDays < 1 || len(bars) < holdDays {
		return position{}, false
	}

	entry := bars[0]
	exit := bars[holdDays-1]
	if entry.Open <= 0 {
		return position{}, false
	}

	return position{
		entryDate:  entry.Date,
		exitDate:   exit.Date,
		entryPrice: entry.Open,
		exitPrice:  exit.Close,
		returnPct:  ReturnPct(entry.Open, exit.Close),
	}, true
}

// ReturnPct is (exit - entry) / entry * 100 rounded to 2 decimals
func ReturnPct(entry, exit float64) float64 {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	return x.Sub(e).Div(e).Mul(hundred).Round(2).InexactFloat64()
}

// AlphaPct is returnPct - benchmarkPct rounded to 2 decimals
func AlphaPct(returnPct, benchmarkPct float64) float64 {
	return decimal.NewFromFloat(returnPct).Sub(decimal.NewFromFloat(benchmarkPct)).Round(2).InexactFloat64()
}

// Round2 rounds half away from zero to 2 decimals
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
