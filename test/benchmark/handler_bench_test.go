package benchmark

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/cache"
	httpadapter "github.com/jsamuelsen/stockquote-service/internal/adapters/http"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/stockquote-service/internal/app"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
}

// createGinContext creates a Gin context for handler testing.
func createGinContext(w http.ResponseWriter, r *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = r
	return c
}

// setupHealthHandler creates a HealthHandler with a minimal registry for benchmarking.
func setupHealthHandler() *handlers.HealthHandler {
	registry := ports.NewHealthRegistry()
	buildInfo := handlers.NewBuildInfo("1.0.0", "abc123", "2024-01-01T00:00:00Z")
	return handlers.NewHealthHandler(registry, buildInfo)
}

// staticProvider answers every lookup with the same quote.
type staticProvider struct{}

func (staticProvider) FetchQuote(_ context.Context, symbol string, date domain.QuoteDate) (*domain.StockQuote, error) {
	return &domain.StockQuote{
		Symbol:      symbol,
		CompanyName: "Microsoft Corp",
		Open:        decimal.RequireFromString("410.5"),
		High:        decimal.RequireFromString("415.25"),
		Low:         decimal.RequireFromString("408.1"),
		Close:       decimal.RequireFromString("414.2"),
		Volume:      21500000,
		Date:        date,
		SessionDate: time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
	}, nil
}

// setupStockRouter builds the full router over an in-memory cache.
func setupStockRouter(ttl time.Duration) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Provider: staticProvider{},
		Cache:    cache.NewMemory(nil, 0, logger),
		Logger:   logger,
		TTL:      ttl,
	})

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.NewDefaultRouterConfig(
		logger,
		&config.AppConfig{Name: "stockquote-service"},
		&config.AuthConfig{},
		setupHealthHandler(),
		handlers.NewStockHandler(service),
	))

	return engine
}

// BenchmarkLivenessHandler measures the performance of the liveness endpoint.
// This is a critical path for Kubernetes probes and should be extremely fast.
func BenchmarkLivenessHandler(b *testing.B) {
	handler := setupHealthHandler()
	req := httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		c := createGinContext(w, req)
		handler.Liveness(c)
	}
}

// BenchmarkReadinessHandler_WithChecks measures readiness with the upstream checks registered.
func BenchmarkReadinessHandler_WithChecks(b *testing.B) {
	registry := ports.NewHealthRegistry()

	_ = registry.Register(&simpleHealthChecker{name: "market-data"})
	_ = registry.Register(&simpleHealthChecker{name: "competitor-source", optional: true})

	buildInfo := handlers.NewBuildInfo("1.0.0", "abc123", "2024-01-01T00:00:00Z")
	handler := handlers.NewHealthHandler(registry, buildInfo)
	req := httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		c := createGinContext(w, req)
		handler.Readiness(c)
	}
}

// BenchmarkGetStock_CacheHit measures a cached quote through the full
// middleware chain. This is the steady-state path for popular symbols.
func BenchmarkGetStock_CacheHit(b *testing.B) {
	router := setupStockRouter(time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/MSFT", http.NoBody)

	router.ServeHTTP(httptest.NewRecorder(), req)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}

// BenchmarkGetStocks_Batch measures a cached five-symbol batch.
func BenchmarkGetStocks_Batch(b *testing.B) {
	router := setupStockRouter(time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks?symbols=MSFT,AAPL,GOOG,AMZN,META", http.NoBody)

	router.ServeHTTP(httptest.NewRecorder(), req)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkGetStock_ValidationError measures the rejection path, which
// never reaches the quote service.
func BenchmarkGetStock_ValidationError(b *testing.B) {
	router := setupStockRouter(time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/MSFT?date=06-10-2024", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// simpleHealthChecker is a minimal health checker for benchmarking.
type simpleHealthChecker struct {
	name     string
	optional bool
}

func (s *simpleHealthChecker) Name() string {
	return s.name
}

func (s *simpleHealthChecker) Check(_ context.Context) error {
	return nil
}

func (s *simpleHealthChecker) Optional() bool {
	return s.optional
}
