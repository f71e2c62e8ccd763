// Package http serves the stock quote API and the /-/ operational endpoints using Gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
)

// Server owns the Gin engine and the listener it is served on.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	cfg    *config.ServerConfig
	logger *slog.Logger

	listener net.Listener
}

// New builds a server for cfg. Routes are added through Engine before Start.
func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "http.Server"))

	// A write deadline at or below the request deadline cuts off quotes
	// that are still within budget.
	if cfg.RequestTimeout > 0 && cfg.WriteTimeout > 0 && cfg.WriteTimeout <= cfg.RequestTimeout {
		logger.Warn("write timeout does not exceed request timeout, slow quotes may be truncated",
			slog.Duration("write_timeout", cfg.WriteTimeout),
			slog.Duration("request_timeout", cfg.RequestTimeout))
	}

	engine := gin.New()
	engine.Use(limitBody(cfg.MaxRequestSize))

	return &Server{
		engine: engine,
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// Engine returns the Gin engine routes are registered on.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Config returns the server configuration.
func (s *Server) Config() *config.ServerConfig {
	return s.cfg
}

// Start binds the listen address and serves in the background. A bind
// failure is returned directly. Later serve failures arrive on the channel,
// which is closed once the server has stopped.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	s.listener = ln

	s.logger.Info("serving HTTP",
		slog.String("addr", ln.Addr().String()),
		slog.Duration("request_timeout", s.cfg.RequestTimeout))

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serving HTTP: %w", err)
		}
	}()

	return errCh, nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	start := time.Now()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("draining HTTP server: %w", err)
	}

	s.logger.Info("HTTP server drained", slog.Duration("took", time.Since(start)))

	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.srv.Addr
}

// limitBody caps request bodies. The API only reads query strings, so any
// sizeable body is abuse.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
