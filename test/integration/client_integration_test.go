//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients/acl"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

// testClientConfig returns a market data client config for integration testing.
func testClientConfig(baseURL string) *clients.Config {
	return &clients.Config{
		ServiceName: "market-data",
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   3,
			Timeout:       100 * time.Millisecond,
			HalfOpenLimit: 2,
		},
		Logger: discardLogger(),
	}
}

// TestClient_RetryBehavior_TransientFailures verifies that a client with
// several attempts rides out a short provider outage.
func TestClient_RetryBehavior_TransientFailures(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(prevClose))
	}))
	defer server.Close()

	client, err := clients.New(testClientConfig(server.URL))
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/v2/aggs/ticker/MSFT/prev")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, prevClose, string(body))
	assert.Equal(t, int32(3), attempts.Load(), "2 failures + 1 success")
}

// TestClient_CircuitBreaker_StateTransitions verifies the breaker goes
// closed, open, half-open and closed again.
func TestClient_CircuitBreaker_StateTransitions(t *testing.T) {
	var (
		calls      atomic.Int32
		shouldFail atomic.Bool
	)

	shouldFail.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)

		if shouldFail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Retry.MaxAttempts = 1
	cfg.Circuit.MaxFailures = 2
	cfg.Circuit.Timeout = 50 * time.Millisecond

	client, err := clients.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, clients.StateClosed, client.CircuitState())

	for range 2 {
		resp, err := client.Get(context.Background(), "/v3/reference/tickers/MSFT")
		if err == nil {
			_ = resp.Body.Close()
		}
	}

	assert.Equal(t, clients.StateOpen, client.CircuitState())

	callsBefore := calls.Load()
	_, err = client.Get(context.Background(), "/v3/reference/tickers/MSFT")
	require.ErrorIs(t, err, clients.ErrCircuitOpen)
	assert.Equal(t, callsBefore, calls.Load(), "no server call when circuit is open")

	time.Sleep(60 * time.Millisecond)
	shouldFail.Store(false)

	for range 2 {
		resp, err := client.Get(context.Background(), "/v3/reference/tickers/MSFT")
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, clients.StateClosed, client.CircuitState())
}

// TestProvider_OpenCircuitIsRetryableUpstreamError verifies how an open
// circuit reaches the quote service.
func TestProvider_OpenCircuitIsRetryableUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Retry.MaxAttempts = 1
	cfg.Circuit.MaxFailures = 1
	cfg.Circuit.Timeout = time.Minute

	client, err := clients.New(cfg)
	require.NoError(t, err)

	provider := acl.NewMarketDataProvider(acl.MarketDataConfig{
		Client: client,
		Logger: discardLogger(),
		Clock:  ports.ClockFunc(func() time.Time { return fixedNow }),
	})

	_, err = provider.FetchQuote(context.Background(), "MSFT", domain.Latest())
	require.ErrorIs(t, err, domain.ErrUpstream)

	_, err = provider.FetchQuote(context.Background(), "MSFT", domain.Latest())
	require.ErrorIs(t, err, domain.ErrUpstream)
	require.ErrorIs(t, err, clients.ErrCircuitOpen)
	assert.True(t, domain.IsRetryable(err))
	assert.Error(t, provider.Check(context.Background()), "open circuit fails the health check")
}

// TestProvider_SlowResponseIsUpstreamError verifies that the per-attempt
// timeout surfaces as a retryable UpstreamError, not a request timeout.
func TestProvider_SlowResponseIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry.MaxAttempts = 1

	client, err := clients.New(cfg)
	require.NoError(t, err)

	provider := acl.NewMarketDataProvider(acl.MarketDataConfig{Client: client, Logger: discardLogger()})

	start := time.Now()
	_, err = provider.FetchQuote(context.Background(), "MSFT", domain.Latest())

	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.True(t, domain.IsRetryable(err))
	assert.Less(t, time.Since(start), 300*time.Millisecond, "should time out quickly")
}

// TestStock_RequestIDPropagatesUpstream verifies that the inbound request ID
// is forwarded to the market data provider.
func TestStock_RequestIDPropagatesUpstream(t *testing.T) {
	st := newStack(t, stackOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/MSFT", http.NoBody)
	req.Header.Set(middleware.HeaderRequestID, "req-integration-123")

	w := httptest.NewRecorder()
	st.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-integration-123", w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "req-integration-123", st.marketData.reqID.Load())
}

// TestClient_ContextCancellation_Integration verifies that requests
// are cancelled promptly when the context is cancelled.
func TestClient_ContextCancellation_Integration(t *testing.T) {
	requestStarted := make(chan struct{})
	requestCompleted := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(requestStarted)
		<-r.Context().Done()
		close(requestCompleted)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Retry.MaxAttempts = 1

	client, err := clients.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-requestStarted
		cancel()
	}()

	start := time.Now()
	_, err = client.Get(ctx, "/v2/aggs/ticker/MSFT/prev")

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "cancellation should be prompt")

	select {
	case <-requestCompleted:
	case <-time.After(time.Second):
		t.Fatal("server did not receive cancellation")
	}
}
