package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// saveFile creates path and its parent directories, hands the file to write
// and reports a failed close, since buffered data is only flushed there
func saveFile(path, kind string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", kind, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s file: %w", kind, cerr)
		}
	}()

	return write(f)
}
