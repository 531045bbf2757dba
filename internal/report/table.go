package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"pead-backtest/internal/research/pead"
)

// PrintTable writes the result rows as an aligned text table
func PrintTable(w io.Writer, results []pead.BacktestResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, strings.Join(Header, "\t")+"\t")
	for _, r := range Rows(results) {
		cells := r.cells()
		for i, c := range cells {
			if c == "" {
				cells[i] = "-"
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

// PrintSummary writes run counts and descriptive statistics
func PrintSummary(w io.Writer, run *pead.RunResult) {
	significant := run.TotalEvents - run.Diagnostics.FilteredBySignificance

	fmt.Fprintf(w, "Run ID:                 %s\n", run.RunID)
	fmt.Fprintf(w, "Run Date:               %s\n", run.RunDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Hold Days:              %d\n", run.Config.HoldDays)
	fmt.Fprintf(w, "Min Surprise:           %.2f%%\n", run.Config.MinSurprise*100)
	fmt.Fprintf(w, "Benchmark:              %s\n", run.Config.BenchmarkInstrument)
	fmt.Fprintf(w, "Events:                 %d total, %d significant\n", run.TotalEvents, significant)
	fmt.Fprintf(w, "Rows Emitted:           %d\n", len(run.Results))
	fmt.Fprintf(w, "Filtered (surprise):    %d\n", run.Diagnostics.FilteredBySignificance)
	fmt.Fprintf(w, "Insufficient Data:      %d\n", run.Diagnostics.InsufficientData)
	fmt.Fprintf(w, "Benchmark Unavailable:  %d\n", run.Diagnostics.BenchmarkUnavailable)

	if len(run.Results) == 0 {
		return
	}
	fmt.Fprintf(w, "Mean Return:            %.2f%%\n", run.Summary.MeanReturnPct)
	if run.Summary.MeanBenchmarkPct != nil {
		fmt.Fprintf(w, "Mean Benchmark Return:  %.2f%%\n", *run.Summary.MeanBenchmarkPct)
	}
	if run.Summary.MeanAlphaPct != nil {
		fmt.Fprintf(w, "Mean Alpha:             %.2f%%\n", *run.Summary.MeanAlphaPct)
	}
	if run.Summary.PositiveAlphaRate != nil {
		fmt.Fprintf(w, "Positive Alpha Rate:    %.1f%%\n", *run.Summary.PositiveAlphaRate*100)
	}
}
