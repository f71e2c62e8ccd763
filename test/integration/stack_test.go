//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/cache"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients/acl"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients/marketwatch"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/flags"
	httpadapter "github.com/jsamuelsen/stockquote-service/internal/adapters/http"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/stockquote-service/internal/app"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

const (
	tickerDetails = `{"status":"OK","results":{"ticker":"%s","name":"%s","active":true}}`
	prevClose     = `{"ticker":"MSFT","status":"OK","resultsCount":1,"results":[` +
		`{"T":"MSFT","o":410.5,"h":415.25,"l":408.1,"c":414.2,"v":21500000,"t":1718136000000}]}`
	openClose = `{"status":"OK","from":"2024-06-10","symbol":"MSFT",` +
		`"open":420.01,"high":425.3,"low":419.5,"close":421.4,"volume":19900000}`

	competitorPage = `<html><body>
<h1 class="company__name">Microsoft Corp.</h1>
<div class="element element--table performance"><table><tbody>
  <tr class="table__row"><td class="table__cell">5 Day</td><td class="table__cell"><li class="content__item value">1.25%</li></td></tr>
</tbody></table></div>
<div class="element element--table Competitors"><table><tbody>
  <tr class="table__row"><td class="table__cell w50">Apple Inc.</td><td class="table__cell w25 number">$3.09T</td></tr>
  <tr class="table__row"><td class="table__cell w50">Alphabet Inc. Cl A</td><td class="table__cell w25 number">$2.1T</td></tr>
</tbody></table></div>
</body></html>`
)

var fixedNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMarketData serves the market data endpoints for MSFT and counts calls per path.
type fakeMarketData struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	failures atomic.Int32
	delay    time.Duration
	authz    atomic.Value
	reqID    atomic.Value
}

func newFakeMarketData(t *testing.T) *fakeMarketData {
	t.Helper()

	f := &fakeMarketData{calls: make(map[string]int)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)

	return f
}

func (f *fakeMarketData) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()

	f.authz.Store(r.Header.Get("Authorization"))
	f.reqID.Store(r.Header.Get(middleware.HeaderRequestID))

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"ERROR","error":"maintenance"}`))

		return
	}

	var body string

	switch r.URL.Path {
	case "/v3/reference/tickers/MSFT":
		body = fmt.Sprintf(tickerDetails, "MSFT", "Microsoft Corp")
	case "/v2/aggs/ticker/MSFT/prev":
		body = prevClose
	case "/v1/open-close/MSFT/2024-06-10":
		body = openClose
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND","message":"Data not found."}`))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeMarketData) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[path]
}

func (f *fakeMarketData) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}

	return total
}

// fakeCompetitorSite serves an anonymous stock page for msft.
type fakeCompetitorSite struct {
	*httptest.Server

	pages atomic.Int32
	down  atomic.Bool
}

func newFakeCompetitorSite(t *testing.T) *fakeCompetitorSite {
	t.Helper()

	f := &fakeCompetitorSite{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.pages.Add(1)

		if f.down.Load() || r.URL.Path != "/investing/stock/msft" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(competitorPage))
	}))
	t.Cleanup(f.Close)

	return f
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:     1,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func testCircuit() config.CircuitBreakerConfig {
	return testCircuitWith(50, time.Second)
}

func testCircuitWith(maxFailures int, timeout time.Duration) config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Timeout:       timeout,
		HalfOpenLimit: 1,
	}
}

// stackOptions tune a full service stack wired the way the binary wires it.
type stackOptions struct {
	cache           config.CacheConfig
	features        map[string]any
	upstreamRetries int
	withoutSource   bool
}

type stack struct {
	handler    http.Handler
	marketData *fakeMarketData
	site       *fakeCompetitorSite
	backend    cache.Backend
	service    *app.QuoteService
}

func newStack(t *testing.T, opts stackOptions) *stack {
	t.Helper()

	logger := discardLogger()
	clock := ports.ClockFunc(func() time.Time { return fixedNow })

	md := newFakeMarketData(t)

	mdClient, err := clients.New(&clients.Config{
		BaseURL:     md.URL,
		ServiceName: "market-data",
		Timeout:     2 * time.Second,
		Retry:       testRetry(),
		Circuit:     testCircuit(),
		AuthFunc:    acl.BearerAuth("pk_integration"),
		Logger:      logger,
	})
	require.NoError(t, err)

	minDate, err := domain.ParseQuoteDate("2003-09-10")
	require.NoError(t, err)

	provider := acl.NewMarketDataProvider(acl.MarketDataConfig{
		Client:  mdClient,
		Logger:  logger,
		Clock:   clock,
		MinDate: minDate,
	})

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(provider))

	st := &stack{marketData: md}

	var source ports.CompetitorSource

	if !opts.withoutSource {
		st.site = newFakeCompetitorSite(t)

		src, err := marketwatch.New(marketwatch.Config{
			Name:     "competitor-source",
			BaseURL:  st.site.URL,
			PagePath: "/investing/stock/%s",
			Timeout:  2 * time.Second,
			Retry:    testRetry(),
			Circuit:  testCircuit(),
			Clock:    clock,
			Logger:   logger,
		})
		require.NoError(t, err)
		require.NoError(t, registry.Register(src))

		source = src
	}

	cacheCfg := opts.cache
	if cacheCfg.Backend == "" {
		cacheCfg.Backend = "memory"
	}

	backend, err := cache.Open(context.Background(), cacheCfg, clock, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	st.backend = backend
	metrics := prometheus.NewRegistry()

	features := opts.features
	if features == nil {
		features = map[string]any{
			"competitor-enrichment": true,
			"performance-data":      true,
		}
	}

	st.service = app.NewQuoteService(app.QuoteServiceConfig{
		Provider: provider,
		Enricher: app.NewCompetitorEnricher(app.EnricherConfig{
			Source:  source,
			Flags:   flags.NewStatic(features),
			Timeout: 2 * time.Second,
			Logger:  logger,
		}),
		Cache:           cache.NewInstrumented(backend, metrics, cacheCfg.Backend),
		Clock:           clock,
		Logger:          logger,
		TTL:             15 * time.Minute,
		UpstreamRetries: opts.upstreamRetries,
	})

	engine := gin.New()
	routerCfg := httpadapter.NewDefaultRouterConfig(
		logger,
		&config.AppConfig{Name: "stockquote-service", Version: "test", Environment: "test"},
		&config.AuthConfig{},
		handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "unknown"),
			handlers.WithGatherer(metrics)),
		handlers.NewStockHandler(st.service),
	)
	httpadapter.SetupRouter(engine, routerCfg)

	st.handler = engine

	return st
}

// get performs a request against the stack and returns the recorder.
func (s *stack) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	return w
}
