package journal

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pead-backtest/internal/research/pead"
	"pead-backtest/internal/trace"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const fileExt = ".jsonl"

// Journal appends one JSON line per event outcome and one per finished run.
// It is safe for concurrent use.
type Journal struct {
	log  *zap.Logger
	file *os.File
	path string
}

// Dir resolves the journal directory from PEAD_LOG_DIR, defaulting to logs
func Dir() string {
	root := os.Getenv("PEAD_LOG_DIR")
	if root == "" {
		root = "logs"
	}
	return filepath.Join(root, "journal")
}

// Open appends to the journal file for day inside dir
func Open(dir string, day time.Time) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	p := filepath.Join(dir, day.UTC().Format(pead.DateLayout)+fileExt)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := New(f)
	j.file = f
	j.path = p
	return j, nil
}

// New writes journal lines to w
func New(w io.Writer) *Journal {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "kind",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), zapcore.InfoLevel)
	return &Journal{log: zap.New(core)}
}

// Path is the file being written, empty for writer-backed journals
func (j *Journal) Path() string {
	return j.path
}

// Record implements pead.OutcomeRecorder
func (j *Journal) Record(ctx context.Context, o pead.EventOutcome) {
	fields := []zap.Field{
		zap.String("run_id", o.RunID),
		zap.Int("index", o.Index),
		zap.String("symbol", o.Event.Instrument),
		zap.String("event_date", o.Event.EventDate.Format(pead.DateLayout)),
		zap.Float64("surprise", o.Event.Surprise),
		zap.String("outcome", string(o.Outcome)),
		zap.String("window_start", o.Window.EntryBoundary.Format(pead.DateLayout)),
		zap.String("window_end", o.Window.QueryEnd.Format(pead.DateLayout)),
		zap.Int("instrument_bars", o.InstrumentBars),
	}
	if o.Outcome == pead.OutcomeEmitted {
		fields = append(fields,
			zap.Int("benchmark_bars", o.BenchmarkBars),
			zap.Bool("benchmark_available", o.BenchmarkAvailable))
	}
	if r := o.Result; r != nil {
		fields = append(fields,
			zap.String("entry_date", r.EntryDate.Format(pead.DateLayout)),
			zap.String("exit_date", r.ExitDate.Format(pead.DateLayout)),
			zap.Float64("entry_price", r.EntryPrice),
			zap.Float64("exit_price", r.ExitPrice),
			zap.Float64("return_pct", r.ReturnPct),
			zap.Float64p("benchmark_return_pct", r.BenchmarkReturnPct),
			zap.Float64p("alpha_pct", r.AlphaPct))
	}
	if traceID, _, ok := trace.GetTraceFields(ctx); ok {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	j.log.Info("event", fields...)
}

// RecordRun appends the run summary line
func (j *Journal) RecordRun(run *pead.RunResult) {
	j.log.Info("run",
		zap.String("run_id", run.RunID),
		zap.Int("hold_days", run.Config.HoldDays),
		zap.Float64("min_surprise", run.Config.MinSurprise),
		zap.String("benchmark", run.Config.BenchmarkInstrument),
		zap.Int("events", run.TotalEvents),
		zap.Int("rows", len(run.Results)),
		zap.Int("filtered_by_significance", run.Diagnostics.FilteredBySignificance),
		zap.Int("insufficient_data", run.Diagnostics.InsufficientData),
		zap.Int("benchmark_unavailable", run.Diagnostics.BenchmarkUnavailable),
		zap.Float64("mean_return_pct", run.Summary.MeanReturnPct),
		zap.Float64p("mean_alpha_pct", run.Summary.MeanAlphaPct),
	)
}

// Close flushes and closes the underlying file
func (j *Journal) Close() error {
	_ = j.log.Sync()
	if j.file == nil {
		return nil
	}
	return j.file.Close()
}

// CompressOlder gzips journal files last modified more than retentionDays
// before now. Failures on individual files are skipped.
func CompressOlder(dir string, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	compressed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if compressFile(filepath.Join(dir, e.Name())) == nil {
			compressed++
		}
	}
	return compressed, nil
}

func compressFile(p string) error {
	gz := p + ".gz"
	// already compressed by an earlier pass
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := gw.Close()
	fileErr := out.Close()
	if copyErr != nil || closeErr != nil || fileErr != nil {
		_ = os.Remove(gz)
		return fmt.Errorf("failed to compress %s", p)
	}
	in.Close()
	return os.Remove(p)
}
