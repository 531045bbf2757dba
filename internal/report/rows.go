package report

import (
	"strconv"

	"pead-backtest/internal/research/pead"
)

// Row is a result formatted for tabular output. Missing benchmark figures
// are empty cells.
type Row struct {
	Ticker       string `csv:"Ticker"`
	EntryDate    string `csv:"Entry Date"`
	ExitDate     string `csv:"Exit Date"`
	EntryPrice   string `csv:"Entry Price"`
	ExitPrice    string `csv:"Exit Price"`
	ReturnPct    string `csv:"Return %"`
	BenchmarkPct string `csv:"SPY Return %"`
	AlphaPct     string `csv:"Alpha %"`
}

// Header lists the column titles in output order
var Header = []string{"Ticker", "Entry Date", "Exit Date", "Entry Price", "Exit Price", "Return %", "SPY Return %", "Alpha %"}

// Rows formats results without reordering them
func Rows(results []pead.BacktestResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, Row{
			Ticker:       r.Instrument,
			EntryDate:    r.EntryDate.Format(pead.DateLayout),
			ExitDate:     r.ExitDate.Format(pead.DateLayout),
			EntryPrice:   fixed(r.EntryPrice),
			ExitPrice:    fixed(r.ExitPrice),
			ReturnPct:    fixed(r.ReturnPct),
			BenchmarkPct: optional(r.BenchmarkReturnPct),
			AlphaPct:     optional(r.AlphaPct),
		})
	}
	return rows
}

func (r Row) cells() []string {
	return []string{r.Ticker, r.EntryDate, r.ExitDate, r.EntryPrice, r.ExitPrice, r.ReturnPct, r.BenchmarkPct, r.AlphaPct}
}

func fixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return fixed(*v)
}
