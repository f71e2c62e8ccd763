package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/stockquote-service/internal/adapters/clients"

	defaultTimeout             = 30 * time.Second
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// Config configures one downstream client.
type Config struct {
	// BaseURL prefixes relative request paths.
	BaseURL string

	// ServiceName names the downstream in logs, spans and metrics.
	ServiceName string

	// Timeout bounds each attempt. Retries and their backoff come on top.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// RatePerMinute caps outbound requests with a token bucket. Zero disables it.
	// Callers wait for a token until their context expires.
	RatePerMinute int

	// Jar keeps cookies for session based downstreams.
	Jar http.CookieJar

	// DisableRedirects hands 3xx responses back instead of following them.
	DisableRedirects bool

	ProxyURL string

	// Headers are defaults; a header already on the request wins.
	Headers http.Header

	// AuthFunc decorates every attempt, retries included, so a refreshed
	// credential is picked up mid-request.
	AuthFunc func(*http.Request)

	Logger *slog.Logger
}

// Client calls one downstream with rate limiting, a circuit breaker,
// jittered retries, tracing and metrics. Request and correlation IDs from
// the inbound request are forwarded.
type Client struct {
	http        *http.Client
	baseURL     string
	serviceName string
	cfg         *Config
	logger      *slog.Logger

	cb      *CircuitBreaker
	limiter *rate.Limiter
	backoff backoff

	tracer  trace.Tracer
	metrics *clientMetrics
}

// New validates cfg, fills its defaults and builds the client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cfg.Retry.MaxAttempts = max(cfg.Retry.MaxAttempts, 1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "clients.Client"),
		slog.String("downstream", cfg.ServiceName),
	)

	metrics, err := newClientMetrics(otel.Meter(instrumentationName), cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("creating client metrics: %w", err)
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Timeout: cfg.Timeout, Transport: transport, Jar: cfg.Jar}
	if cfg.DisableRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   cfg.Circuit.MaxFailures,
		Timeout:       cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	})
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	})

	c := &Client{
		http:        hc,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName: cfg.ServiceName,
		cfg:         cfg,
		logger:      logger,
		cb:          cb,
		backoff:     newBackoff(cfg.Retry),
		tracer:      otel.Tracer(instrumentationName),
		metrics:     metrics,
	}

	if cfg.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	return c, nil
}

// Do sends req. Responses below 500 are returned as they are, 4xx included.
// A request that never got such a response returns an error wrapping
// ErrMaxRetriesExceeded and the last cause, or ErrRateLimited, or
// ErrCircuitOpen. Bodies are rewound through req.GetBody between attempts;
// a streaming body without GetBody needs a single-attempt client.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With(
		slog.String("downstream", c.serviceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if err := c.admit(ctx); err != nil {
		outcome := outcomeCircuitOpen
		if errors.Is(err, ErrRateLimited) {
			outcome = outcomeRateLimited
		}

		c.metrics.record(ctx, req.Method, 0, time.Since(start), outcome)
		logger.WarnContext(ctx, "request not sent", slog.String("reason", outcome))

		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.serviceName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("peer.service", c.serviceName),
		))
	defer span.End()

	c.decorate(ctx, req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, attempts, err := c.send(ctx, req, logger)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("http.attempts", attempts))

	if err != nil {
		c.cb.RecordFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.record(ctx, req.Method, 0, elapsed, outcomeError)
		logger.ErrorContext(ctx, "request failed",
			slog.Int("attempts", attempts),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))

		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}

	c.cb.RecordSuccess()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, "HTTP "+resp.Status)
	}

	c.metrics.record(ctx, req.Method, resp.StatusCode, elapsed, "")
	logger.DebugContext(ctx, "request completed",
		slog.Int("status", resp.StatusCode),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed))

	return resp, nil
}

// admit waits for a rate limit token, then asks the breaker.
func (c *Client) admit(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	if !c.cb.Allow() {
		return ErrCircuitOpen
	}

	return nil
}

// send runs the attempts. It returns the first response below 500, or the
// last failure once attempts run out or a failure is final.
func (c *Client) send(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, int, error) {
	var cause error

	for attempt := range c.cfg.Retry.MaxAttempts {
		if attempt > 0 {
			wait := c.backoff.delay(attempt-1, cause)
			logger.DebugContext(ctx, "retrying request",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.Any("cause", cause))

			if err := sleep(ctx, wait); err != nil {
				return nil, attempt, err
			}

			if err := rewind(req); err != nil {
				return nil, attempt, fmt.Errorf("rewinding request body: %w", err)
			}

			if c.cfg.AuthFunc != nil {
				c.cfg.AuthFunc(req)
			}
		}

		resp, err := c.http.Do(req.WithContext(ctx))

		switch {
		case err != nil && !transient(err):
			return nil, attempt + 1, err
		case err != nil:
			cause = err
		case resp.StatusCode >= http.StatusInternalServerError:
			cause = &ServerError{Status: resp.StatusCode, RetryAfter: retryAfter(resp.Header, time.Now())}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
		default:
			return resp, attempt + 1, nil
		}
	}

	return nil, c.cfg.Retry.MaxAttempts, cause
}

// decorate sets forwarded IDs, default headers and auth on req.
func (c *Client) decorate(ctx context.Context, req *http.Request) {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	for name, values := range c.cfg.Headers {
		if len(values) > 0 && req.Header.Get(name) == "" {
			req.Header.Set(name, values[0])
		}
	}

	if c.cfg.AuthFunc != nil {
		c.cfg.AuthFunc(req)
	}
}

// Get sends a GET for path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.newRequest(ctx, http.MethodGet, path, http.NoBody, "")
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.newRequest(ctx, http.MethodPost, path, body, "application/json")
}

// PostForm sends form URL-encoded. The body is rewindable, so retries are safe.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	return c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.Do(ctx, req)
}

// ServiceName returns the downstream name.
func (c *Client) ServiceName() string {
	return c.serviceName
}

// CircuitState returns the breaker's current state.
func (c *Client) CircuitState() State {
	return c.cb.State()
}

// CheckCircuit fails while the circuit is open, saying when the next probe
// is allowed. Health checks use it so probes never spend an upstream call.
func (c *Client) CheckCircuit() error {
	if wait, open := c.cb.RetryAfter(); open {
		return fmt.Errorf("%w: next probe in %s", ErrCircuitOpen, wait.Round(time.Second))
	}

	return nil
}

// buildURL joins path to the base URL. Absolute URLs pass through, which
// lets a session client post to a login host other than the content host.
func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func buildTransport(cfg *Config) (*http.Transport, error) {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cmpPositive(cfg.Transport.MaxIdleConns, defaultMaxIdleConns),
		MaxIdleConnsPerHost: cmpPositive(cfg.Transport.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost),
		IdleConnTimeout:     cmpPositive(cfg.Transport.IdleConnTimeout, defaultIdleConnTimeout),
	}

	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url: %w", err)
		}

		t.Proxy = http.ProxyURL(proxy)
	}

	return t, nil
}

// cmpPositive returns v, or def when v is not positive.
func cmpPositive[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}

	return def
}
