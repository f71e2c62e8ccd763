// Package marketwatch scrapes competitor and performance data from a stock
// site that has no public API. Access goes through a cookie session that is
// logged into once and shared by all requests.
package marketwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/98.0.4758.109 Safari/537.36"
	defaultSessionTTL = 30 * time.Minute
	defaultTimeout    = 8 * time.Second

	// maxPageSize bounds how much HTML is parsed.
	maxPageSize = 4 << 20
)

// Config configures a Source.
type Config struct {
	Name     string
	BaseURL  string
	LoginURL string

	// PagePath is a format string receiving the lower-cased symbol.
	PagePath string

	Username string
	Password string
	ClientID string

	ProxyURL  string
	UserAgent string

	Timeout         time.Duration
	SessionTTL      time.Duration
	DefaultCurrency string

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	Clock  ports.Clock
	Logger *slog.Logger
}

// FromConfig maps the service configuration onto a Source config.
func FromConfig(cfg *config.Config, logger *slog.Logger) Config {
	c := cfg.Services.Competitors

	out := Config{
		Name:            c.Name,
		BaseURL:         c.BaseURL,
		PagePath:        c.PagePath,
		ClientID:        c.ClientID,
		ProxyURL:        c.ProxyURL,
		UserAgent:       c.UserAgent,
		Timeout:         c.Timeout,
		SessionTTL:      c.SessionTTL,
		DefaultCurrency: c.DefaultCurrency,
		Retry:           cfg.Client.Retry,
		Circuit:         cfg.Client.CircuitBreaker,
		Transport:       cfg.Client.Transport,
		Logger:          logger,
	}

	if c.HasCredentials() {
		out.LoginURL = c.LoginURL
		out.Username = c.Username
		out.Password = c.Password
	}

	return out
}

// Source implements ports.CompetitorSource.
type Source struct {
	name            string
	pages           *clients.Client
	session         *session
	pagePath        string
	defaultCurrency string
	loginHost       string
	logger          *slog.Logger
}

// New creates a Source. Without a LoginURL the site is scraped anonymously.
func New(cfg Config) (*Source, error) {
	if cfg.BaseURL == "" || cfg.PagePath == "" {
		return nil, errors.New("marketwatch: base url and page path are required")
	}

	if cfg.Name == "" {
		cfg.Name = "competitor-source"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}

	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "marketwatch.Source"))

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	pages, err := clients.New(&clients.Config{
		BaseURL:     cfg.BaseURL,
		ServiceName: cfg.Name,
		Timeout:     cfg.Timeout,
		Retry:       cfg.Retry,
		Circuit:     cfg.Circuit,
		Transport:   cfg.Transport,
		Jar:         jar,
		ProxyURL:    cfg.ProxyURL,
		Headers:     browserHeaders(cfg.UserAgent),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating page client: %w", err)
	}

	loginRetry := cfg.Retry
	loginRetry.MaxAttempts = 1

	login, err := clients.New(&clients.Config{
		BaseURL:          cfg.BaseURL,
		ServiceName:      cfg.Name + "-login",
		Timeout:          cfg.Timeout,
		Retry:            loginRetry,
		Circuit:          cfg.Circuit,
		Transport:        cfg.Transport,
		Jar:              jar,
		DisableRedirects: true,
		ProxyURL:         cfg.ProxyURL,
		Headers:          browserHeaders(cfg.UserAgent),
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating login client: %w", err)
	}

	var loginHost string
	if cfg.LoginURL != "" {
		u, err := url.Parse(cfg.LoginURL)
		if err != nil {
			return nil, fmt.Errorf("parsing login url: %w", err)
		}

		loginHost = u.Host
	}

	// A login page on the content host is recognised by its path instead.
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Host == loginHost {
		loginHost = ""
	}

	return &Source{
		name:            cfg.Name,
		pages:           pages,
		pagePath:        cfg.PagePath,
		defaultCurrency: cfg.DefaultCurrency,
		loginHost:       loginHost,
		logger:          logger,
		session: &session{
			client:   login,
			loginURL: cfg.LoginURL,
			form:     loginForm(cfg.Username, cfg.Password, cfg.ClientID),
			ttl:      cfg.SessionTTL,
			timeout:  cfg.Timeout,
			clock:    cfg.Clock,
			logger:   logger,
		},
	}, nil
}

// browserHeaders makes requests look like an ordinary browser visit.
func browserHeaders(userAgent string) http.Header {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return http.Header{
		"User-Agent":      {userAgent},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.5"},
		"Referer":         {"https://www.google.com/"},
	}
}

// FetchProfile returns the competitors and performance listed for symbol.
// A rejected session is re-established once and the page fetched again.
// Implements ports.CompetitorSource.
func (s *Source) FetchProfile(ctx context.Context, symbol string) (*domain.Enrichment, error) {
	for attempt := 0; ; attempt++ {
		if err := s.session.Ensure(ctx); err != nil {
			return nil, err
		}

		page, err := s.fetchPage(ctx, symbol)
		if errors.Is(err, ErrSessionRejected) && attempt == 0 && !s.session.anonymous() {
			s.session.Invalidate()
			continue
		}

		if err != nil {
			return nil, err
		}

		if len(page.Skipped) > 0 {
			s.logger.DebugContext(ctx, "rows skipped while parsing",
				slog.String("symbol", symbol),
				slog.Any("skipped", page.Skipped))
		}

		s.logger.Log(ctx, logging.LevelTrace, "page parsed",
			slog.String("symbol", symbol),
			slog.String("company", page.CompanyName),
			slog.Int("competitors", len(page.Competitors)))

		return &domain.Enrichment{Competitors: page.Competitors, Performance: page.Performance}, nil
	}
}

func (s *Source) fetchPage(ctx context.Context, symbol string) (*Page, error) {
	path := fmt.Sprintf(s.pagePath, url.PathEscape(strings.ToLower(symbol)))

	resp, err := s.pages.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || s.bouncedToLogin(resp) {
		return nil, fmt.Errorf("%w: %s answered %d", ErrSessionRejected, path, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s answered %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}

	return ParsePage(io.LimitReader(resp.Body, maxPageSize), s.defaultCurrency)
}

// bouncedToLogin reports whether redirects ended on the login page.
func (s *Source) bouncedToLogin(resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil {
		return false
	}

	final := resp.Request.URL
	if s.loginHost != "" && final.Host == s.loginHost {
		return true
	}

	return strings.Contains(strings.ToLower(final.Path), "/login")
}

// Name returns the health check name.
func (s *Source) Name() string {
	return s.name
}

// Check reports unhealthy while the page client's circuit is open.
func (s *Source) Check(_ context.Context) error {
	return s.pages.CheckCircuit()
}

// Optional marks the source as non-essential: quotes are served without it.
func (s *Source) Optional() bool {
	return true
}
