package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pead-backtest/internal/events"
	"pead-backtest/internal/research/pead"

	"gopkg.in/yaml.v3"
)

const (
	DataSourceMock  = "MOCK"
	DataSourceEODHD = "EODHD"
	DataSourceKite  = "KITE"
)

type Config struct {
	Backtest struct {
		HoldDays            int      `yaml:"hold_days"`
		MinSurprise         *float64 `yaml:"min_surprise"` // nil means default; 0 keeps every non-negative surprise
		BenchmarkInstrument string   `yaml:"benchmark_instrument"`
		BufferMultiplier    int      `yaml:"buffer_multiplier"`
		Concurrency         int      `yaml:"concurrency"`
		FetchTimeoutSeconds int      `yaml:"fetch_timeout_seconds"`
	} `yaml:"backtest"`
	DataSource string `yaml:"data_source"`
	EODHD      struct {
		BaseURL        string `yaml:"base_url"`
		RateLimit      int    `yaml:"rate_limit"`
		ExchangeSuffix string `yaml:"exchange_suffix"`
		MaxAttempts    int    `yaml:"max_attempts"`
	} `yaml:"eodhd"`
	Kite struct {
		Exchange  string `yaml:"exchange"`
		RateLimit int    `yaml:"rate_limit"`
	} `yaml:"kite"`
	Mock struct {
		Holidays []string `yaml:"holidays"`
	} `yaml:"mock"`
	Events      []events.Record          `yaml:"events"`
	EventsFile  string                   `yaml:"events_file"`
	CalendarURL string                   `yaml:"calendar_url"`
	Calendar    events.CalendarSelectors `yaml:"calendar"`
	Output      struct {
		Dir   string `yaml:"dir"`
		CSV   string `yaml:"csv"`
		Chart string `yaml:"chart"`
		JSON  string `yaml:"json"`
	} `yaml:"output"`
	Server struct {
		Addr      string `yaml:"addr"`
		MaxEvents int    `yaml:"max_events"`
	} `yaml:"server"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	def := pead.DefaultConfig()
	if c.Backtest.HoldDays == 0 {
		c.Backtest.HoldDays = def.HoldDays
	}
	if c.Backtest.MinSurprise == nil {
		v := def.MinSurprise
		c.Backtest.MinSurprise = &v
	}
	if c.Backtest.BenchmarkInstrument == "" {
		c.Backtest.BenchmarkInstrument = def.BenchmarkInstrument
	}
	if c.Backtest.BufferMultiplier == 0 {
		c.Backtest.BufferMultiplier = def.BufferMultiplier
	}
	if c.Backtest.Concurrency == 0 {
		c.Backtest.Concurrency = def.Concurrency
	}
	if c.Backtest.FetchTimeoutSeconds == 0 {
		c.Backtest.FetchTimeoutSeconds = 30
	}

	c.DataSource = strings.ToUpper(c.DataSource)
	if c.DataSource == "" {
		c.DataSource = DataSourceMock
	}
	if c.EODHD.BaseURL == "" {
		c.EODHD.BaseURL = "https://eodhd.com/api"
	}
	if c.EODHD.RateLimit == 0 {
		c.EODHD.RateLimit = 10
	}
	if c.EODHD.ExchangeSuffix == "" {
		c.EODHD.ExchangeSuffix = "US"
	}
	if c.EODHD.MaxAttempts == 0 {
		c.EODHD.MaxAttempts = 2
	}
	if c.Kite.Exchange == "" {
		c.Kite.Exchange = "NSE"
	}
	if c.Kite.RateLimit == 0 {
		c.Kite.RateLimit = 3
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.CSV == "" {
		c.Output.CSV = "pead_results.csv"
	}
	if c.Output.Chart == "" {
		c.Output.Chart = "pead_chart.pdf"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxEvents == 0 {
		c.Server.MaxEvents = 1000
	}
}

// ApplyEnv overrides backtest parameters from PEAD_HOLD_DAYS,
// PEAD_MIN_SURPRISE and PEAD_BENCHMARK. Unparseable values are errors.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PEAD_HOLD_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PEAD_HOLD_DAYS %q: %w", v, err)
		}
		c.Backtest.HoldDays = n
	}
	if v := os.Getenv("PEAD_MIN_SURPRISE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PEAD_MIN_SURPRISE %q: %w", v, err)
		}
		c.Backtest.MinSurprise = &f
	}
	if v := os.Getenv("PEAD_BENCHMARK"); v != "" {
		c.Backtest.BenchmarkInstrument = strings.ToUpper(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.BacktestConfig().Validate(); err != nil {
		return err
	}
	if c.Backtest.Concurrency < 1 {
		return fmt.Errorf("backtest.concurrency must be at least 1, got %d", c.Backtest.Concurrency)
	}
	if c.Backtest.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("backtest.fetch_timeout_seconds must be positive, got %d", c.Backtest.FetchTimeoutSeconds)
	}
	switch c.DataSource {
	case DataSourceMock, DataSourceEODHD, DataSourceKite:
	default:
		return fmt.Errorf("invalid data_source '%s': must be 'MOCK', 'EODHD' or 'KITE'", c.DataSource)
	}
	if c.EventsFile != "" && c.CalendarURL != "" {
		return errors.New("events_file and calendar_url are mutually exclusive")
	}
	for _, h := range c.Mock.Holidays {
		if _, err := time.Parse(pead.DateLayout, h); err != nil {
			return fmt.Errorf("mock.holidays: invalid date %q", h)
		}
	}
	if c.Server.MaxEvents < 1 {
		return fmt.Errorf("server.max_events must be positive, got %d", c.Server.MaxEvents)
	}
	return nil
}

// BacktestConfig returns the engine parameters
func (c *Config) BacktestConfig() pead.BacktestConfig {
	cfg := pead.BacktestConfig{
		HoldDays:            c.Backtest.HoldDays,
		BenchmarkInstrument: strings.ToUpper(strings.TrimSpace(c.Backtest.BenchmarkInstrument)),
		BufferMultiplier:    c.Backtest.BufferMultiplier,
		Concurrency:         c.Backtest.Concurrency,
	}
	if c.Backtest.MinSurprise != nil {
		cfg.MinSurprise = *c.Backtest.MinSurprise
	}
	return cfg
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Backtest.FetchTimeoutSeconds) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
