// Package httpcontroller exposes the detection processor and the freshness
// ledger over HTTP.
package httpcontroller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/freshness-go/internal/conf"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/processor"
)

// DefaultBodyLimit caps request bodies when no limit is configured.
const DefaultBodyLimit = "4M"

// Server encapsulates the echo instance and the components it serves.
type Server struct {
	Echo      *echo.Echo
	Settings  *conf.WebServerSettings
	Processor *processor.Processor
	Ledger    *ledger.Ledger

	metrics http.Handler
	log     logger.Logger
}

// New builds a server with all routes registered. metrics may be nil, in
// which case /metrics is not served.
func New(settings *conf.WebServerSettings, proc *processor.Processor, l *ledger.Ledger, metrics http.Handler, log logger.Logger) *Server {
	s := &Server{
		Echo:      echo.New(),
		Settings:  settings,
		Processor: proc,
		Ledger:    l,
		metrics:   metrics,
		log:       log.Module("http"),
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.configureMiddleware()
	s.initRoutes()
	return s
}

// configureMiddleware sets up middleware for the server.
func (s *Server) configureMiddleware() {
	limit := s.Settings.BodyLimit
	if limit == "" {
		limit = DefaultBodyLimit
	}

	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.LoggingMiddleware())
	s.Echo.Use(middleware.BodyLimit(limit))
}

// initRoutes registers all HTTP routes.
func (s *Server) initRoutes() {
	s.Echo.GET("/healthz", s.HealthCheck)
	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := s.Echo.Group("/api/v1")
	api.POST("/detections", s.PostDetections)
	api.GET("/ledger", s.GetLedger)
	api.GET("/ledger/export", s.ExportLedger)
}

// Start listens on the configured address and blocks until the server is
// shut down. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", logger.String("listen", s.Settings.Listen))

	err := s.Echo.Start(s.Settings.Listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Context("listen", s.Settings.Listen).
			Build()
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server shutting down")
	if err := s.Echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

// LoggingMiddleware logs every completed request with its latency.
func (s *Server) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the response so the logged status is final
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", res.Status),
				logger.String("ip", c.RealIP()),
				logger.Int64("bytes_out", res.Size),
				logger.Duration("latency", time.Since(start)),
			}

			switch {
			case err != nil:
				s.log.Error("HTTP request", append(fields, logger.Error(err))...)
			case res.Status >= http.StatusBadRequest:
				s.log.Warn("HTTP request", fields...)
			default:
				s.log.Debug("HTTP request", fields...)
			}
			return nil
		}
	}
}
