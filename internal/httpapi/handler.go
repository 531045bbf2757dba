package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pead-backtest/internal/report"
	"pead-backtest/internal/research/pead"

	"github.com/gin-gonic/gin"
)

type eventRequest struct {
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	Surprise *float64 `json:"surprise"`
}

// backtestRequest carries the events and optional parameter overrides
type backtestRequest struct {
	Events           []eventRequest `json:"events"`
	HoldDays         *int           `json:"hold_days"`
	MinSurprise      *float64       `json:"min_surprise"`
	Benchmark        *string        `json:"benchmark"`
	BufferMultiplier *int           `json:"buffer_multiplier"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Index *int   `json:"index,omitempty"`
}

func (s *Server) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if len(req.Events) > s.maxEvents {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("at most %d events per request", s.maxEvents),
		})
		return
	}

	cfg := s.base
	if req.HoldDays != nil {
		cfg.HoldDays = *req.HoldDays
	}
	if req.MinSurprise != nil {
		cfg.MinSurprise = *req.MinSurprise
	}
	if req.Benchmark != nil {
		cfg.BenchmarkInstrument = strings.ToUpper(strings.TrimSpace(*req.Benchmark))
	}
	if req.BufferMultiplier != nil {
		cfg.BufferMultiplier = *req.BufferMultiplier
	}

	evs := make([]pead.EarningsEvent, 0, len(req.Events))
	for i, e := range req.Events {
		var (
			ev  pead.EarningsEvent
			err error
		)
		if e.Surprise == nil {
			// same rejection as a blank surprise cell in a file
			_, err = pead.ParseEvent(e.Ticker, e.Date, "")
		} else {
			ev, err = pead.NewEvent(e.Ticker, e.Date, *e.Surprise)
		}
		if err != nil {
			writeError(c, pead.WithIndex(err, i))
			return
		}
		evs = append(evs, ev)
	}

	run, err := s.factory(cfg).Run(c.Request.Context(), evs)
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="pead_results.csv"`)
		c.Status(http.StatusOK)
		if err := report.WriteCSV(c.Writer, run.Results); err != nil {
			_ = c.Error(err)
		}
		return
	}

	c.JSON(http.StatusOK, run)
}

func writeError(c *gin.Context, err error) {
	var ve *pead.ValidationError
	if errors.As(err, &ve) {
		resp := errorResponse{Error: ve.Error(), Field: ve.Field}
		if ve.Index >= 0 {
			idx := ve.Index
			resp.Index = &idx
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	if c.Request.Context().Err() != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"})
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
