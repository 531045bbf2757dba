package report

import (
	"encoding/json"
	"fmt"
	"io"

	"pead-backtest/internal/research/pead"
)

// WriteJSON dumps the full run, including diagnostics and summary
func WriteJSON(w io.Writer, run *pead.RunResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(run); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}

func SaveJSON(path string, run *pead.RunResult) error {
	return saveFile(path, "json", func(w io.Writer) error {
		return WriteJSON(w, run)
	})
}
