package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pead-backtest/internal/app"
	"pead-backtest/internal/httpapi"
	"pead-backtest/internal/interfaces"
	"pead-backtest/internal/logger"
	"pead-backtest/internal/research/pead"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	shutdownTrace, err := app.InitSystem()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer shutdownTrace()

	ctx := context.Background()
	cfg, err := app.LoadConfig(ctx, *configPath, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	provider, err := app.NewProvider(cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to create price provider", err)
		os.Exit(1)
	}
	// One gateway for every request so the source rate limit is shared
	gw := app.NewGateway(ctx, cfg, provider)

	j := app.OpenJournal(ctx, time.Now())
	var recorder pead.OutcomeRecorder
	if j != nil {
		defer j.Close()
		recorder = j
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := httpapi.NewServer(cfg.Server.Addr, cfg.BacktestConfig(),
		func(bc pead.BacktestConfig) interfaces.Backtester {
			return app.NewBacktester(bc, gw, recorder)
		},
		cfg.Server.MaxEvents)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		logger.Info(ctx, "Shutdown signal received", "signal", sig.String())
	case err := <-errc:
		if err != nil {
			logger.ErrorWithErr(ctx, "HTTP server failed", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(ctx, "Graceful shutdown failed", err)
	}
	logger.Info(ctx, "Server stopped")
}
