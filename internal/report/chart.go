package report

import (
	"fmt"
	"io"
	"math"

	"pead-backtest/internal/research/pead"

	"github.com/go-pdf/fpdf"
)

const (
	pageW      = 297.0
	pageH      = 210.0
	margin     = 15.0
	plotTop    = 30.0
	plotBottom = pageH - 35.0
)

type rgb struct{ r, g, b int }

var (
	returnColor = rgb{52, 101, 164}
	alphaColor  = rgb{78, 154, 6}
	axisColor   = rgb{80, 80, 80}
)

// RenderChartPDF draws a bar chart of each row's return and alpha
func RenderChartPDF(w io.Writer, run *pead.RunResult) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Post-earnings drift: %d-session returns vs %s",
		run.Config.HoldDays, run.Config.BenchmarkInstrument), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Run %s  |  %d events, %d rows",
		run.RunID, run.TotalEvents, len(run.Results)), "", 1, "L", false, 0, "")

	if len(run.Results) == 0 {
		pdf.SetY(pageH / 2)
		pdf.SetFont("Arial", "I", 12)
		pdf.CellFormat(0, 8, "No events produced a result row", "", 1, "C", false, 0, "")
		return output(pdf, w)
	}

	lo, hi := valueRange(run.Results)
	scale := (plotBottom - plotTop) / (hi - lo)
	zeroY := plotBottom - (0-lo)*scale

	plotLeft := margin + 10
	plotRight := pageW - margin
	slot := (plotRight - plotLeft) / float64(len(run.Results))
	barW := math.Min(slot*0.35, 18)

	setDraw(pdf, axisColor)
	pdf.SetLineWidth(0.3)
	pdf.Line(plotLeft, zeroY, plotRight, zeroY)
	pdf.SetFont("Arial", "", 7)
	pdf.SetXY(margin, zeroY-2)
	pdf.CellFormat(9, 4, "0%", "", 0, "R", false, 0, "")

	for i, r := range run.Results {
		center := plotLeft + slot*(float64(i)+0.5)

		drawBar(pdf, center-barW, barW, zeroY, r.ReturnPct, scale, returnColor)
		if r.AlphaPct != nil {
			drawBar(pdf, center, barW, zeroY, *r.AlphaPct, scale, alphaColor)
		}

		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "B", 8)
		pdf.SetXY(center-slot/2, plotBottom+4)
		pdf.CellFormat(slot, 4, r.Instrument, "", 2, "C", false, 0, "")
		pdf.SetFont("Arial", "", 7)
		pdf.SetX(center - slot/2)
		pdf.CellFormat(slot, 4, r.EntryDate.Format(pead.DateLayout), "", 0, "C", false, 0, "")
	}

	legend(pdf, pageH-12)
	return output(pdf, w)
}

// SaveChartPDF renders the chart to path, creating parent directories
func SaveChartPDF(path string, run *pead.RunResult) error {
	return saveFile(path, "chart", func(w io.Writer) error {
		return RenderChartPDF(w, run)
	})
}

func drawBar(pdf *fpdf.Fpdf, x, width, zeroY, value, scale float64, c rgb) {
	h := value * scale
	y := zeroY - h
	if h < 0 {
		y = zeroY
		h = -h
	}
	pdf.SetFillColor(c.r, c.g, c.b)
	pdf.Rect(x, y, width, math.Max(h, 0.2), "F")

	labelY := y - 4
	if value < 0 {
		labelY = y + h
	}
	pdf.SetTextColor(c.r, c.g, c.b)
	pdf.SetFont("Arial", "", 6)
	pdf.SetXY(x-2, labelY)
	pdf.CellFormat(width+4, 4, fmt.Sprintf("%.2f%%", value), "", 0, "C", false, 0, "")
}

func legend(pdf *fpdf.Fpdf, y float64) {
	x := margin + 10
	for _, item := range []struct {
		label string
		c     rgb
	}{{"Return %", returnColor}, {"Alpha %", alphaColor}} {
		pdf.SetFillColor(item.c.r, item.c.g, item.c.b)
		pdf.Rect(x, y+1, 4, 3, "F")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 8)
		pdf.SetXY(x+5, y)
		pdf.CellFormat(25, 5, item.label, "", 0, "L", false, 0, "")
		x += 32
	}
}

// valueRange returns plot bounds that always include zero
func valueRange(results []pead.BacktestResult) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, r := range results {
		lo = math.Min(lo, r.ReturnPct)
		hi = math.Max(hi, r.ReturnPct)
		if r.AlphaPct != nil {
			lo = math.Min(lo, *r.AlphaPct)
			hi = math.Max(hi, *r.AlphaPct)
		}
	}
	if hi-lo < 1 {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.1
	if lo < 0 {
		lo -= pad
	}
	if hi > 0 {
		hi += pad
	}
	return lo, hi
}

func setDraw(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetDrawColor(c.r, c.g, c.b)
}

func output(pdf *fpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
