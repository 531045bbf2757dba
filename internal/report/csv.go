package report

import (
	"fmt"
	"io"
	"strings"

	"pead-backtest/internal/research/pead"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes the result table with a header row
func WriteCSV(w io.Writer, results []pead.BacktestResult) error {
	rows := Rows(results)
	if len(rows) == 0 {
		// gocsv derives the header from the first element
		_, err := io.WriteString(w, csvHeaderLine())
		return err
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// SaveCSV writes the result table to path, creating parent directories
func SaveCSV(path string, results []pead.BacktestResult) error {
	return saveFile(path, "csv", func(w io.Writer) error {
		return WriteCSV(w, results)
	})
}

func csvHeaderLine() string {
	return strings.Join(Header, ",") + "\n"
}
