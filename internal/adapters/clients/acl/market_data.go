package acl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

// MarketDataConfig contains configuration for the market data provider.
type MarketDataConfig struct {
	// Client is the HTTP client to use for requests. It should be configured
	// with a single attempt; retries are owned by the quote service.
	Client *clients.Client

	// Logger is the structured logger.
	Logger *slog.Logger

	// Clock decides which dates are in the future. Defaults to the system clock.
	Clock ports.Clock

	// MinDate is the first day the provider has data for. Latest disables the check.
	MinDate domain.QuoteDate
}

// MarketDataProvider implements ports.QuoteProvider against a Polygon.io style API.
type MarketDataProvider struct {
	client  *clients.Client
	name    string
	logger  *slog.Logger
	clock   ports.Clock
	minDate domain.QuoteDate
}

// NewMarketDataProvider creates a new market data adapter.
// Panics if Client is nil.
func NewMarketDataProvider(cfg MarketDataConfig) *MarketDataProvider {
	if cfg.Client == nil {
		panic("MarketDataProvider: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock
	}

	return &MarketDataProvider{
		client:  cfg.Client,
		name:    cfg.Client.ServiceName(),
		logger:  logger,
		clock:   clock,
		minDate: cfg.MinDate,
	}
}

// BearerAuth returns a client AuthFunc sending apiKey as a bearer token.
// An empty key sends nothing, so the API answers 401 and the error is explicit.
func BearerAuth(apiKey string) func(*http.Request) {
	return func(req *http.Request) {
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}
}

// External DTOs. These never leave the package.

type tickerDetailsResponse struct {
	Status  string `json:"status"`
	Results struct {
		Ticker string `json:"ticker"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	} `json:"results"`
}

type aggregateBar struct {
	Ticker    string          `json:"T"`
	Open      decimal.Decimal `json:"o"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Close     decimal.Decimal `json:"c"`
	Volume    decimal.Decimal `json:"v"`
	Timestamp int64           `json:"t"`
}

type previousCloseResponse struct {
	Ticker       string         `json:"ticker"`
	Status       string         `json:"status"`
	ResultsCount int            `json:"resultsCount"`
	Results      []aggregateBar `json:"results"`
}

type openCloseResponse struct {
	Status string          `json:"status"`
	From   string          `json:"from"`
	Symbol string          `json:"symbol"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// FetchQuote returns the quote for symbol on date, or the latest session.
// Implements ports.QuoteProvider.
func (p *MarketDataProvider) FetchQuote(ctx context.Context, symbol string, date domain.QuoteDate) (*domain.StockQuote, error) {
	if err := p.checkDate(date); err != nil {
		return nil, err
	}

	p.logger.DebugContext(ctx, "fetching quote",
		slog.String("symbol", symbol),
		slog.String("date", date.String()))

	name, err := p.companyName(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var quote *domain.StockQuote
	if date.IsLatest() {
		quote, err = p.previousClose(ctx, symbol)
	} else {
		quote, err = p.openClose(ctx, symbol, date)
	}

	if err != nil {
		return nil, err
	}

	quote.CompanyName = name
	quote.Date = date

	p.logger.Log(ctx, logging.LevelTrace, "translated external DTO to domain",
		slog.String("symbol", quote.Symbol),
		slog.String("close", quote.Close.String()),
		slog.Time("session", quote.SessionDate))

	return quote, nil
}

// checkDate rejects dates the provider cannot have data for.
func (p *MarketDataProvider) checkDate(date domain.QuoteDate) error {
	if date.IsLatest() {
		return nil
	}

	today := domain.NewQuoteDate(p.clock.Now())
	if date.After(today) {
		return domain.NewInvalidDateError(date.String(), "date is in the future")
	}

	if !p.minDate.IsLatest() && date.Before(p.minDate) {
		return domain.NewInvalidDateError(date.String(),
			fmt.Sprintf("no data before %s", p.minDate))
	}

	return nil
}

func (p *MarketDataProvider) companyName(ctx context.Context, symbol string) (string, error) {
	path := "/v3/reference/tickers/" + url.PathEscape(symbol)
	notFound := domain.NewNotFoundError("symbol", symbol)

	details, err := getJSON[tickerDetailsResponse](ctx, p.client, call{path, "get ticker details", notFound})
	if err != nil {
		return "", err
	}

	if details.Results.Ticker == "" {
		return "", notFound
	}

	return strings.TrimSpace(details.Results.Name), nil
}

func (p *MarketDataProvider) previousClose(ctx context.Context, symbol string) (*domain.StockQuote, error) {
	path := "/v2/aggs/ticker/" + url.PathEscape(symbol) + "/prev?adjusted=true"
	notFound := domain.NewNotFoundError("symbol", symbol)

	prev, err := getJSON[previousCloseResponse](ctx, p.client, call{path, "get previous close", notFound})
	if err != nil {
		return nil, err
	}

	if prev.ResultsCount == 0 || len(prev.Results) == 0 {
		return nil, notFound
	}

	return translateBar(symbol, &prev.Results[0]), nil
}

func (p *MarketDataProvider) openClose(ctx context.Context, symbol string, date domain.QuoteDate) (*domain.StockQuote, error) {
	path := fmt.Sprintf("/v1/open-close/%s/%s?adjusted=true", url.PathEscape(symbol), date)
	noSession := domain.NewInvalidDateError(date.String(), "no trading session on this date")

	oc, err := getJSON[openCloseResponse](ctx, p.client, call{path, "get daily open/close", noSession})
	if err != nil {
		return nil, err
	}

	return p.translateOpenClose(symbol, date, oc)
}

// translateBar converts an aggregate bar to a domain quote.
// An empty ticker in the bar is taken to be the requested symbol.
func translateBar(symbol string, bar *aggregateBar) *domain.StockQuote {
	ticker := bar.Ticker
	if ticker == "" {
		ticker = symbol
	}

	return &domain.StockQuote{
		Symbol:      strings.ToUpper(ticker),
		Open:        bar.Open,
		High:        bar.High,
		Low:         bar.Low,
		Close:       bar.Close,
		Volume:      bar.Volume.IntPart(),
		SessionDate: time.UnixMilli(bar.Timestamp).UTC(),
	}
}

// translateOpenClose converts a daily open/close to a domain quote. The
// session must be the one requested; some feeds answer with the nearest
// trading day instead.
func (p *MarketDataProvider) translateOpenClose(symbol string, date domain.QuoteDate, oc *openCloseResponse) (*domain.StockQuote, error) {
	ticker := oc.Symbol
	if ticker == "" {
		ticker = symbol
	}

	session, err := time.Parse(domain.DateLayout, oc.From)
	if err != nil {
		return nil, domain.NewPermanentUpstreamError(p.name,
			fmt.Sprintf("malformed session date %q", oc.From), err)
	}

	if !session.Equal(date.Time()) {
		return nil, domain.NewInvalidDateError(date.String(),
			fmt.Sprintf("provider returned session %s instead", oc.From))
	}

	return &domain.StockQuote{
		Symbol:      strings.ToUpper(ticker),
		Open:        oc.Open,
		High:        oc.High,
		Low:         oc.Low,
		Close:       oc.Close,
		Volume:      oc.Volume.IntPart(),
		SessionDate: session,
	}, nil
}

// Name returns the health check name for this provider.
// Implements ports.HealthChecker.
func (p *MarketDataProvider) Name() string {
	return p.name
}

// Check reports the provider unhealthy while its circuit breaker is open.
// Probes never spend a rate-limited API call.
// Implements ports.HealthChecker.
func (p *MarketDataProvider) Check(_ context.Context) error {
	return p.client.CheckCircuit()
}
