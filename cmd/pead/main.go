package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pead-backtest/internal/app"
	"pead-backtest/internal/journal"
	"pead-backtest/internal/logger"
	"pead-backtest/internal/report"
	"pead-backtest/internal/research/pead"
	"pead-backtest/internal/store"
)

type options struct {
	configPath  string
	eventsFile  string
	calendarURL string
	holdDays    int
	minSurprise float64
	benchmark   string
	source      string
	outDir      string
	csvName     string
	chartName   string
	jsonName    string
	noJournal   bool
}

func parseFlags() (options, map[string]bool) {
	var o options
	flag.StringVar(&o.configPath, "config", "config.yaml", "path to the YAML config")
	flag.StringVar(&o.eventsFile, "events", "", "events file (.csv, .yaml or .json)")
	flag.StringVar(&o.calendarURL, "calendar", "", "earnings calendar page to scrape for events")
	flag.IntVar(&o.holdDays, "hold-days", 0, "trading sessions to hold each position")
	flag.Float64Var(&o.minSurprise, "min-surprise", 0, "minimum fractional EPS surprise (inclusive)")
	flag.StringVar(&o.benchmark, "benchmark", "", "benchmark instrument")
	flag.StringVar(&o.source, "source", "", "price source: MOCK, EODHD or KITE")
	flag.StringVar(&o.outDir, "out", "", "output directory")
	flag.StringVar(&o.csvName, "csv", "", "CSV file name, \"-\" to skip")
	flag.StringVar(&o.chartName, "chart", "", "chart PDF file name, \"-\" to skip")
	flag.StringVar(&o.jsonName, "json", "", "JSON file name")
	flag.BoolVar(&o.noJournal, "no-journal", false, "do not write the run journal")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *store.Config, o options, set map[string]bool) error {
	if set["events"] {
		cfg.EventsFile = o.eventsFile
		cfg.CalendarURL = ""
	}
	if set["calendar"] {
		cfg.CalendarURL = o.calendarURL
		cfg.EventsFile = ""
	}
	if set["hold-days"] {
		cfg.Backtest.HoldDays = o.holdDays
	}
	if set["min-surprise"] {
		v := o.minSurprise
		cfg.Backtest.MinSurprise = &v
	}
	if set["benchmark"] {
		cfg.Backtest.BenchmarkInstrument = o.benchmark
	}
	if set["source"] {
		cfg.DataSource = strings.ToUpper(o.source)
	}
	if set["out"] {
		cfg.Output.Dir = o.outDir
	}
	if set["csv"] {
		cfg.Output.CSV = o.csvName
	}
	if set["chart"] {
		cfg.Output.Chart = o.chartName
	}
	if set["json"] {
		cfg.Output.JSON = o.jsonName
	}
	return cfg.Validate()
}

func main() {
	os.Exit(run())
}

func run() int {
	o, set := parseFlags()

	shutdown, err := app.InitSystem()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(ctx, o.configPath, set["config"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if err := applyFlags(cfg, o, set); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		return 2
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║      PEAD Backtest - Post-Earnings Announcement Drift       ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	provider, err := app.NewProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create price provider: %v\n", err)
		return 1
	}
	fmt.Printf("📊 Price source: %s\n", provider.Name())

	evs, err := app.LoadEvents(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load events: %v\n", err)
		return 1
	}
	if len(evs) == 0 {
		fmt.Println("⚠️  No earnings events configured")
		return 1
	}
	fmt.Printf("📅 %d earnings events loaded\n", len(evs))
	fmt.Println("⏳ Fetching prices, this may take a few moments...")
	fmt.Println()

	var (
		j        *journal.Journal
		recorder pead.OutcomeRecorder
	)
	if !o.noJournal {
		if j = app.OpenJournal(ctx, time.Now()); j != nil {
			defer j.Close()
			recorder = j
		}
	}

	gw := app.NewGateway(ctx, cfg, provider)
	bt := app.NewBacktester(cfg.BacktestConfig(), gw, recorder)

	res, err := bt.Run(ctx, evs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backtest failed: %v\n", err)
		if pead.IsValidation(err) {
			return 2
		}
		return 1
	}
	if j != nil {
		j.RecordRun(res)
		logger.Debug(ctx, "Run journal written", "path", j.Path())
	}

	report.PrintSummary(os.Stdout, res)
	fmt.Println()
	if len(res.Results) == 0 {
		fmt.Println("No trades generated.")
	} else if err := report.PrintTable(os.Stdout, res.Results); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print results: %v\n", err)
		return 1
	}
	fmt.Println()

	if err := writeOutputs(cfg, res); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func writeOutputs(cfg *store.Config, res *pead.RunResult) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return err
	}

	if name := cfg.Output.CSV; name != "-" {
		p := filepath.Join(cfg.Output.Dir, name)
		if err := report.SaveCSV(p, res.Results); err != nil {
			return err
		}
		fmt.Printf("✅ Results saved to %s\n", p)
	}

	if name := cfg.Output.Chart; name != "-" && len(res.Results) > 0 {
		p := filepath.Join(cfg.Output.Dir, name)
		if err := report.SaveChartPDF(p, res); err != nil {
			return err
		}
		fmt.Printf("✅ Chart saved to %s\n", p)
	}

	if name := cfg.Output.JSON; name != "" {
		p := filepath.Join(cfg.Output.Dir, name)
		if err := report.SaveJSON(p, res); err != nil {
			return err
		}
		fmt.Printf("✅ Run saved to %s\n", p)
	}
	return nil
}
