package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"pead-backtest/internal/journal"
	"pead-backtest/internal/logger"
	"pead-backtest/internal/store"
	"pead-backtest/internal/trace"

	"github.com/joho/godotenv"
)

// InitSystem loads .env and initializes the logger and tracer. The returned
// function flushes pending spans.
func InitSystem() (func(), error) {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
	}, nil
}

// LoadConfig reads path. A missing file falls back to defaults unless the
// caller asked for that file explicitly.
func LoadConfig(ctx context.Context, path string, explicit bool) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, os.ErrNotExist) {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}

	logger.Warn(ctx, "Config file not found, using defaults", "path", path)
	cfg = store.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// OpenJournal compresses journals older than PEAD_LOG_RETENTION_DAYS and
// opens today's file. Journal problems are logged and never fatal.
func OpenJournal(ctx context.Context, now time.Time) *journal.Journal {
	dir := journal.Dir()

	if v := os.Getenv("PEAD_LOG_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn(ctx, "Invalid PEAD_LOG_RETENTION_DAYS", "value", v)
		} else if n, err := journal.CompressOlder(dir, days, now); err != nil {
			logger.Warn(ctx, "Failed to compress old journals", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "Compressed old journals", "count", n)
		}
	}

	j, err := journal.Open(dir, now)
	if err != nil {
		logger.Warn(ctx, "Run journal disabled", "error", err)
		return nil
	}
	return j
}
