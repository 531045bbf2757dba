package events

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"pead-backtest/internal/logger"
	"pead-backtest/internal/research/pead"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// CalendarSelectors locate the earnings table and its columns. Column
// selectors are evaluated relative to each row.
type CalendarSelectors struct {
	Row      string `yaml:"row"`
	Symbol   string `yaml:"symbol"`
	Date     string `yaml:"date"`
	Actual   string `yaml:"actual"`
	Estimate string `yaml:"estimate"`
}

func DefaultCalendarSelectors() CalendarSelectors {
	return CalendarSelectors{
		Row:      "table tbody tr",
		Symbol:   "td:nth-child(1)",
		Date:     "td:nth-child(2)",
		Actual:   "td:nth-child(3)",
		Estimate: "td:nth-child(4)",
	}
}

var calendarDateLayouts = []string{
	pead.DateLayout,
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
	"01/02/2006",
}

// CalendarScraper builds events from an HTML earnings calendar listing
// reported and consensus EPS. Surprise is (actual - estimate) / |estimate|.
type CalendarScraper struct {
	selectors CalendarSelectors
	timeout   time.Duration
	userAgent string
}

// CalendarResult holds the events found on a page and how many rows were
// dropped for missing or unparseable figures
type CalendarResult struct {
	Events  []pead.EarningsEvent
	Skipped int
}

func NewCalendarScraper(selectors CalendarSelectors, timeout time.Duration) *CalendarScraper {
	def := DefaultCalendarSelectors()
	if selectors.Row == "" {
		selectors.Row = def.Row
	}
	if selectors.Symbol == "" {
		selectors.Symbol = def.Symbol
	}
	if selectors.Date == "" {
		selectors.Date = def.Date
	}
	if selectors.Actual == "" {
		selectors.Actual = def.Actual
	}
	if selectors.Estimate == "" {
		selectors.Estimate = def.Estimate
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CalendarScraper{
		selectors: selectors,
		timeout:   timeout,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Scrape visits pageURL and extracts events from its earnings table
func (s *CalendarScraper) Scrape(ctx context.Context, pageURL string) (*CalendarResult, error) {
	logger.Info(ctx, "Scraping earnings calendar", "url", pageURL)

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", s.userAgent)
	})

	result := &CalendarResult{}
	c.OnHTML(s.selectors.Row, func(e *colly.HTMLElement) {
		s.collectRow(ctx, e.DOM, result)
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("calendar request failed with status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && scrapeErr == nil {
		scrapeErr = fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}

	logger.Info(ctx, "Earnings calendar scraped", "url", pageURL, "events", len(result.Events), "skipped", result.Skipped)
	return result, nil
}

// Parse extracts events from an already downloaded calendar page
func (s *CalendarScraper) Parse(ctx context.Context, r io.Reader) (*CalendarResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar html: %w", err)
	}

	result := &CalendarResult{}
	doc.Find(s.selectors.Row).Each(func(_ int, row *goquery.Selection) {
		s.collectRow(ctx, row, result)
	})
	return result, nil
}

func (s *CalendarScraper) collectRow(ctx context.Context, row *goquery.Selection, result *CalendarResult) {
	cell := func(sel string) string {
		return strings.TrimSpace(row.Find(sel).First().Text())
	}

	symbol := cell(s.selectors.Symbol)
	rawDate := cell(s.selectors.Date)
	actual, okA := parseEPS(cell(s.selectors.Actual))
	estimate, okE := parseEPS(cell(s.selectors.Estimate))
	date, okD := parseCalendarDate(rawDate)

	if symbol == "" || !okA || !okE || !okD || estimate == 0 {
		result.Skipped++
		logger.Debug(ctx, "Calendar row skipped", "symbol", symbol, "date", rawDate)
		return
	}

	ev, err := pead.NewEvent(symbol, date.Format(pead.DateLayout), (actual-estimate)/math.Abs(estimate))
	if err != nil {
		result.Skipped++
		return
	}
	result.Events = append(result.Events, ev)
}

// parseEPS accepts figures such as "1.52", "$1.52", "(0.12)" and "-0.12"
func parseEPS(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "−", "-")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = strings.Trim(s, "()")
	}
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

func parseCalendarDate(s string) (time.Time, bool) {
	for _, layout := range calendarDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
