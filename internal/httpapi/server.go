package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pead-backtest/internal/interfaces"
	"pead-backtest/internal/logger"
	"pead-backtest/internal/research/pead"
	"pead-backtest/internal/trace"

	"github.com/gin-gonic/gin"
)

// BacktesterFactory builds a backtester for one request's parameters
type BacktesterFactory func(cfg pead.BacktestConfig) interfaces.Backtester

// Server exposes backtest runs over HTTP
type Server struct {
	engine    *gin.Engine
	server    *http.Server
	base      pead.BacktestConfig
	factory   BacktesterFactory
	maxEvents int
}

func NewServer(addr string, base pead.BacktestConfig, factory BacktesterFactory, maxEvents int) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine:    engine,
		base:      base,
		factory:   factory,
		maxEvents: maxEvents,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/backtests", s.runBacktest)
	}
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logger.Info(context.Background(), "HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// loggerMiddleware logs each request with its latency inside a span
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := trace.StartSpan(c.Request.Context(), "http "+c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if status >= 500 {
			logger.Error(ctx, "HTTP request failed", fields...)
			return
		}
		logger.Info(ctx, "HTTP request", fields...)
	}
}
