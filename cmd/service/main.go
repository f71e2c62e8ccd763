// Package main is the entry point for the stock quote service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/cache"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients/acl"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients/marketwatch"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/flags"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/stockquote-service/internal/app"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
	"github.com/jsamuelsen/stockquote-service/internal/platform/telemetry"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Secrets from .env, then profile from environment
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("cache_backend", cfg.Cache.Backend),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        cfg.App.Version,
		Environment:    cfg.App.Environment,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Insecure:       cfg.Telemetry.Insecure,
		ExportInterval: cfg.Telemetry.ExportInterval,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	healthRegistry := ports.NewHealthRegistry()

	// 5. Market data provider (ACL over the instrumented client)
	provider, err := newMarketDataProvider(cfg, logger)
	if err != nil {
		return err
	}

	if err := healthRegistry.Register(provider); err != nil {
		return fmt.Errorf("registering market data health check: %w", err)
	}

	// 6. Competitor source, optional
	var source ports.CompetitorSource

	if cfg.Services.Competitors.Enabled {
		src, err := marketwatch.New(marketwatch.FromConfig(cfg, logger))
		if err != nil {
			return fmt.Errorf("creating competitor source: %w", err)
		}

		if err := healthRegistry.Register(src); err != nil {
			return fmt.Errorf("registering competitor source health check: %w", err)
		}

		source = src
	}

	// 7. Cache backend, metrics and sweeper
	backend, err := cache.Open(ctx, cfg.Cache, ports.SystemClock, logger)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}

	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			logger.Error("cache close error", slog.Any("error", closeErr))
		}
	}()

	var sweeper *cache.Sweeper

	if cfg.Cache.SweepSchedule != "" {
		sweeper, err = cache.NewSweeper(cfg.Cache.SweepSchedule, backend, logger)
		if err != nil {
			return fmt.Errorf("creating cache sweeper: %w", err)
		}

		sweeper.Start()
	}

	// 8. Application layer. Enrichment may need a login plus the page fetch.
	enricher := app.NewCompetitorEnricher(app.EnricherConfig{
		Source:  source,
		Flags:   flags.NewStatic(cfg.Features),
		Timeout: 2 * cfg.Services.Competitors.Timeout,
		Logger:  logger,
	})

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Provider:         provider,
		Enricher:         enricher,
		Cache:            cache.NewInstrumented(backend, prometheus.DefaultRegisterer, cfg.Cache.Backend),
		Logger:           logger,
		TTL:              cfg.Cache.TTL(),
		UpstreamRetries:  cfg.Quotes.UpstreamRetries,
		BatchConcurrency: cfg.Quotes.BatchConcurrency,
		MaxBatchSymbols:  cfg.Quotes.MaxBatchSymbols,
		FetchTimeout:     cfg.Quotes.FetchTimeout,
	})

	// 9. HTTP server and routes
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	server := http.New(&cfg.Server, logger)

	routerCfg := http.NewDefaultRouterConfig(
		logger,
		&cfg.App,
		&cfg.Auth,
		handlers.NewHealthHandler(healthRegistry, buildInfo),
		handlers.NewStockHandler(quoteService),
	)
	routerCfg.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routerCfg)

	serverErr, err := server.Start()
	if err != nil {
		sweeper.Stop(ctx)
		return err
	}

	// 10. Wait for shutdown signal, then drain
	return waitForShutdown(ctx, logger, server, sweeper, serverErr, cfg.Server.ShutdownTimeout)
}

// newMarketDataProvider builds the quote provider. The client makes a single
// attempt: retries of UpstreamError belong to the quote service, which caps them.
func newMarketDataProvider(cfg *config.Config, logger *slog.Logger) (*acl.MarketDataProvider, error) {
	md := cfg.Services.MarketData

	if md.APIKey == "" {
		logger.Warn("market data API key not set, quote requests will fail with UPSTREAM_ERROR",
			slog.String("env", config.EnvMarketDataAPIKey))
	}

	retry := cfg.Client.Retry
	retry.MaxAttempts = 1

	httpClient, err := clients.New(&clients.Config{
		BaseURL:       md.BaseURL,
		ServiceName:   md.Name,
		Timeout:       md.Timeout,
		Retry:         retry,
		Circuit:       cfg.Client.CircuitBreaker,
		Transport:     cfg.Client.Transport,
		RatePerMinute: md.RateLimitPerMinute,
		AuthFunc:      acl.BearerAuth(md.APIKey),
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market data client: %w", err)
	}

	minDate, err := domain.ParseQuoteDate(md.MinDate)
	if err != nil {
		return nil, fmt.Errorf("parsing market data min_date: %w", err)
	}

	return acl.NewMarketDataProvider(acl.MarketDataConfig{
		Client:  httpClient,
		Logger:  logger,
		MinDate: minDate,
	}), nil
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then stops the sweeper and drains the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	sweeper *cache.Sweeper,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	var errs []error

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	sweeper.Stop(shutdownCtx)

	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}
