package pead

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fetchCall struct {
	instrument string
	start, end time.Time
}

// stubGateway serves fixed series, filtered to the requested range
type stubGateway struct {
	mu     sync.Mutex
	series map[string][]DailyPriceBar
	delay  map[string]time.Duration
	calls  []fetchCall
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		series: make(map[string][]DailyPriceBar),
		delay:  make(map[string]time.Duration),
	}
}

func (s *stubGateway) Fetch(ctx context.Context, instrument string, start, end time.Time) []DailyPriceBar {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{instrument, start, end})
	bars := s.series[instrument]
	delay := s.delay[instrument]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return []DailyPriceBar{}
		}
	}

	out := []DailyPriceBar{}
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *stubGateway) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type captureRecorder struct {
	mu       sync.Mutex
	outcomes []EventOutcome
}

func (c *captureRecorder) Record(_ context.Context, o EventOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// weekdays returns n consecutive weekday dates starting at from, skipping any
// date listed in holidays
func weekdays(from string, n int, holidays ...string) []time.Time {
	skip := make(map[string]bool)
	for _, h := range holidays {
		skip[h] = true
	}
	var out []time.Time
	for d := day(from); len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || skip[d.Format(DateLayout)] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// series builds bars on dates with the given first open and last close. The
// intermediate prices drift between the two.
func series(dates []time.Time, firstOpen, lastClose float64) []DailyPriceBar {
	bars := make([]DailyPriceBar, len(dates))
	for i, d := range dates {
		mid := firstOpen + (lastClose-firstOpen)*float64(i)/float64(len(dates))
		bars[i] = DailyPriceBar{Date: d, Open: mid, Close: mid + 0.5}
	}
	bars[0].Open = firstOpen
	bars[len(bars)-1].Close = lastClose
	return bars
}

func testConfig() BacktestConfig {
	cfg := DefaultConfig()
	cfg.Concurrency = 2
	return cfg
}

func fixedEngine(cfg BacktestConfig, gw PriceSeriesGateway, opts ...Option) *Engine {
	opts = append([]Option{
		WithRunID(func() string { return "run-1" }),
		WithClock(func() time.Time { return day("2024-03-01") }),
	}, opts...)
	return NewEngine(cfg, gw, opts...)
}

func TestRunEmitsSignificantEventWithAlpha(t *testing.T) {
	gw := newStubGateway()
	gw.series["AAPL"] = series(weekdays("2024-01-26", 10), 100, 110)
	gw.series["SPY"] = series(weekdays("2024-01-26", 10), 400, 413)

	events := []EarningsEvent{
		{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.15},
		{Instrument: "XYZ", EventDate: day("2024-01-25"), Surprise: 0.05},
	}

	run, err := fixedEngine(testConfig(), gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(run.Results) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(run.Results))
	}

	row := run.Results[0]
	if row.Instrument != "AAPL" {
		t.Errorf("Expected AAPL, got %s", row.Instrument)
	}
	if !row.EntryDate.Equal(day("2024-01-26")) {
		t.Errorf("Expected entry 2024-01-26, got %s", row.EntryDate.Format(DateLayout))
	}
	if !row.ExitDate.Equal(day("2024-02-08")) {
		t.Errorf("Expected exit 2024-02-08, got %s", row.ExitDate.Format(DateLayout))
	}
	if row.EntryPrice != 100 || row.ExitPrice != 110 {
		t.Errorf("Expected prices 100 -> 110, got %v -> %v", row.EntryPrice, row.ExitPrice)
	}
	if row.ReturnPct != 10.00 {
		t.Errorf("Expected return 10.00, got %v", row.ReturnPct)
	}
	if row.BenchmarkReturnPct == nil || *row.BenchmarkReturnPct != 3.25 {
		t.Errorf("Expected benchmark 3.25, got %v", row.BenchmarkReturnPct)
	}
	if row.AlphaPct == nil || *row.AlphaPct != 6.75 {
		t.Errorf("Expected alpha 6.75, got %v", row.AlphaPct)
	}

	if run.Diagnostics.FilteredBySignificance != 1 {
		t.Errorf("Expected 1 filtered event, got %d", run.Diagnostics.FilteredBySignificance)
	}
	if run.RunID != "run-1" || run.TotalEvents != 2 {
		t.Errorf("Unexpected run metadata: id=%s total=%d", run.RunID, run.TotalEvents)
	}

	for _, c := range gw.calls {
		if c.instrument == "XYZ" {
			t.Error("Expected filtered event to never reach the gateway")
		}
	}
}

func TestRunQueriesHoldingWindow(t *testing.T) {
	gw := newStubGateway()
	events := []EarningsEvent{{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.2}}

	if _, err := fixedEngine(testConfig(), gw).Run(context.Background(), events); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(gw.calls) != 1 {
		t.Fatalf("Expected a single fetch for an empty series, got %d", len(gw.calls))
	}
	call := gw.calls[0]
	if !call.start.Equal(day("2024-01-26")) {
		t.Errorf("Expected start 2024-01-26, got %s", call.start.Format(DateLayout))
	}
	if !call.end.Equal(day("2024-02-15")) {
		t.Errorf("Expected end 2024-02-15, got %s", call.end.Format(DateLayout))
	}
}

func TestRunThresholdIsInclusive(t *testing.T) {
	gw := newStubGateway()
	gw.series["MSFT"] = series(weekdays("2024-01-31", 10), 50, 55)
	gw.series["SPY"] = series(weekdays("2024-01-31", 10), 400, 400)

	events := []EarningsEvent{
		{Instrument: "MSFT", EventDate: day("2024-01-30"), Surprise: 0.10},
		{Instrument: "MSFT", EventDate: day("2024-01-30"), Surprise: -0.30},
	}

	run, err := fixedEngine(testConfig(), gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(run.Results) != 1 {
		t.Fatalf("Expected surprise equal to threshold to qualify, got %d rows", len(run.Results))
	}
	if run.Diagnostics.FilteredBySignificance != 1 {
		t.Errorf("Expected negative surprise to be filtered, got %d", run.Diagnostics.FilteredBySignificance)
	}
	if *run.Results[0].AlphaPct != 10.00 {
		t.Errorf("Expected alpha 10.00 against flat benchmark, got %v", *run.Results[0].AlphaPct)
	}
}

func TestRunSkipsShortSeries(t *testing.T) {
	gw := newStubGateway()
	gw.series["AAPL"] = series(weekdays("2024-01-26", 9), 100, 110)
	gw.series["SPY"] = series(weekdays("2024-01-26", 10), 400, 413)

	events := []EarningsEvent{{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.15}}

	run, err := fixedEngine(testConfig(), gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(run.Results) != 0 {
		t.Errorf("Expected no rows, got %d", len(run.Results))
	}
	if run.Diagnostics.InsufficientData != 1 {
		t.Errorf("Expected 1 insufficient-data event, got %d", run.Diagnostics.InsufficientData)
	}
	for _, c := range gw.calls {
		if c.instrument == "SPY" {
			t.Error("Expected benchmark to be skipped when the instrument series is short")
		}
	}
}

func TestRunEmitsRowWithoutBenchmark(t *testing.T) {
	gw := newStubGateway()
	gw.series["AAPL"] = series(weekdays("2024-01-26", 10), 100, 110)
	gw.series["SPY"] = series(weekdays("2024-01-26", 3), 400, 413)

	events := []EarningsEvent{{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.15}}

	run, err := fixedEngine(testConfig(), gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(run.Results) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(run.Results))
	}
	row := run.Results[0]
	if row.ReturnPct != 10.00 {
		t.Errorf("Expected return 10.00, got %v", row.ReturnPct)
	}
	if row.BenchmarkReturnPct != nil || row.AlphaPct != nil {
		t.Errorf("Expected nil benchmark and alpha, got %v and %v", row.BenchmarkReturnPct, row.AlphaPct)
	}
	if run.Diagnostics.BenchmarkUnavailable != 1 {
		t.Errorf("Expected 1 benchmark-unavailable row, got %d", run.Diagnostics.BenchmarkUnavailable)
	}
	if run.Summary.MeanAlphaPct != nil {
		t.Error("Expected no alpha mean without benchmark rows")
	}
}

func TestRunCountsSessionsAcrossHolidays(t *testing.T) {
	// 2024-02-19 is a market holiday; the 10th session moves to 2024-02-26
	dates := weekdays("2024-02-12", 10, "2024-02-19")
	gw := newStubGateway()
	gw.series["NVDA"] = series(dates, 200, 250)
	gw.series["SPY"] = series(dates, 500, 505)

	events := []EarningsEvent{{Instrument: "NVDA", EventDate: day("2024-02-09"), Surprise: 0.4}}

	run, err := fixedEngine(testConfig(), gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(run.Results) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(run.Results))
	}

	row := run.Results[0]
	if !row.EntryDate.Equal(day("2024-02-12")) {
		t.Errorf("Expected entry 2024-02-12, got %s", row.EntryDate.Format(DateLayout))
	}
	if !row.ExitDate.Equal(day("2024-02-26")) {
		t.Errorf("Expected exit 2024-02-26, got %s", row.ExitDate.Format(DateLayout))
	}
	if row.ReturnPct != 25.00 {
		t.Errorf("Expected return 25.00, got %v", row.ReturnPct)
	}
}

func TestRunUsesOnlyFirstHoldDaysSessions(t *testing.T) {
	dates := weekdays("2024-01-26", 14)
	bars := series(dates, 100, 999)
	bars[9].Close = 120

	gw := newStubGateway()
	gw.series["AAPL"] = bars

	events := []EarningsEvent{{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.15}}

	run, err := fixedEngine(testConfig(), gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.Results[0].ReturnPct != 20.00 {
		t.Errorf("Expected return from the 10th session close, got %v", run.Results[0].ReturnPct)
	}
}

func TestRunPreservesInputOrder(t *testing.T) {
	gw := newStubGateway()
	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF"}
	for i, s := range symbols {
		gw.series[s] = series(weekdays("2024-01-26", 10), 100, 101+float64(i))
		// earlier events take longer so completion order is reversed
		gw.delay[s] = time.Duration(len(symbols)-i) * 5 * time.Millisecond
	}
	gw.series["SPY"] = series(weekdays("2024-01-26", 10), 400, 404)

	var events []EarningsEvent
	for _, s := range symbols {
		events = append(events, EarningsEvent{Instrument: s, EventDate: day("2024-01-25"), Surprise: 0.5})
	}

	cfg := testConfig()
	cfg.Concurrency = len(symbols)
	run, err := fixedEngine(cfg, gw).Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(run.Results) != len(symbols) {
		t.Fatalf("Expected %d rows, got %d", len(symbols), len(run.Results))
	}
	for i, s := range symbols {
		if run.Results[i].Instrument != s {
			t.Errorf("Row %d: expected %s, got %s", i, s, run.Results[i].Instrument)
		}
	}
}

func TestRunRejectsInvalidInputBeforeFetching(t *testing.T) {
	gw := newStubGateway()

	cfg := testConfig()
	cfg.HoldDays = 0
	_, err := fixedEngine(cfg, gw).Run(context.Background(), []EarningsEvent{
		{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.2},
	})
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}

	_, err = fixedEngine(testConfig(), gw).Run(context.Background(), []EarningsEvent{
		{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.2},
		{Instrument: " ", EventDate: day("2024-01-25"), Surprise: 0.2},
	})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("Expected ErrInvalidEvent, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Index != 1 || ve.Field != "instrument" {
		t.Errorf("Expected validation error on event 1 instrument, got %#v", err)
	}

	if gw.callCount() != 0 {
		t.Errorf("Expected no fetches, got %d", gw.callCount())
	}
}

func TestRunEmptyInput(t *testing.T) {
	run, err := fixedEngine(testConfig(), newStubGateway()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.Results == nil || len(run.Results) != 0 {
		t.Errorf("Expected empty non-nil results, got %v", run.Results)
	}
}

func TestRunCancelled(t *testing.T) {
	gw := newStubGateway()
	gw.series["AAPL"] = series(weekdays("2024-01-26", 10), 100, 110)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixedEngine(testConfig(), gw).Run(ctx, []EarningsEvent{
		{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.2},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRunRecordsEveryOutcome(t *testing.T) {
	gw := newStubGateway()
	gw.series["AAPL"] = series(weekdays("2024-01-26", 10), 100, 110)
	gw.series["SPY"] = series(weekdays("2024-01-26", 10), 400, 413)

	rec := &captureRecorder{}
	events := []EarningsEvent{
		{Instrument: "AAPL", EventDate: day("2024-01-25"), Surprise: 0.15},
		{Instrument: "XYZ", EventDate: day("2024-01-25"), Surprise: 0.05},
		{Instrument: "NODATA", EventDate: day("2024-01-25"), Surprise: 0.5},
	}

	if _, err := fixedEngine(testConfig(), gw, WithRecorder(rec)).Run(context.Background(), events); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	byIndex := make(map[int]EventOutcome)
	for _, o := range rec.outcomes {
		byIndex[o.Index] = o
		if o.RunID != "run-1" {
			t.Errorf("Expected run id run-1, got %s", o.RunID)
		}
	}
	if len(byIndex) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(byIndex))
	}
	if byIndex[0].Outcome != OutcomeEmitted || !byIndex[0].BenchmarkAvailable || byIndex[0].Result == nil {
		t.Errorf("Unexpected outcome for AAPL: %+v", byIndex[0])
	}
	if byIndex[1].Outcome != OutcomeBelowThreshold {
		t.Errorf("Expected BELOW_THRESHOLD, got %s", byIndex[1].Outcome)
	}
	if byIndex[2].Outcome != OutcomeInsufficientData {
		t.Errorf("Expected INSUFFICIENT_DATA, got %s", byIndex[2].Outcome)
	}
}

func TestSummarize(t *testing.T) {
	b1, a1 := 2.0, 8.0
	b2, a2 := 4.0, -3.0
	results := []BacktestResult{
		{ReturnPct: 10, BenchmarkReturnPct: &b1, AlphaPct: &a1},
		{ReturnPct: 1, BenchmarkReturnPct: &b2, AlphaPct: &a2},
		{ReturnPct: -2},
	}

	s := Summarize(results)
	if s.MeanReturnPct != 3.00 {
		t.Errorf("Expected mean return 3.00, got %v", s.MeanReturnPct)
	}
	if s.MeanBenchmarkPct == nil || *s.MeanBenchmarkPct != 3.00 {
		t.Errorf("Expected mean benchmark 3.00, got %v", s.MeanBenchmarkPct)
	}
	if s.MeanAlphaPct == nil || *s.MeanAlphaPct != 2.50 {
		t.Errorf("Expected mean alpha 2.50, got %v", s.MeanAlphaPct)
	}
	if s.PositiveAlphaRate == nil || *s.PositiveAlphaRate != 0.5 {
		t.Errorf("Expected positive alpha rate 0.5, got %v", s.PositiveAlphaRate)
	}

	empty := Summarize(nil)
	if empty.MeanReturnPct != 0 || empty.MeanAlphaPct != nil {
		t.Errorf("Expected zero summary, got %+v", empty)
	}
}
