// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

const (
	instrumentationName = "github.com/jsamuelsen/stockquote-service/internal/app"

	defaultQuoteTTL         = 15 * time.Minute
	defaultBatchConcurrency = 4
	defaultMaxBatchSymbols  = 20
	defaultFetchTimeout     = 20 * time.Second
	maxUpstreamRetries      = 3
)

// QuoteService is the single entry point for quotes: cache first, then the
// provider and the competitor enricher, with the result cached for a TTL.
// It depends on port interfaces, not concrete implementations.
type QuoteService struct {
	provider ports.QuoteProvider
	enricher *CompetitorEnricher
	cache    ports.QuoteCache
	clock    ports.Clock
	tracer   trace.Tracer
	logger   *slog.Logger

	ttl              time.Duration
	retries          int
	batchConcurrency int
	maxBatchSymbols  int
	fetchTimeout     time.Duration

	inflight singleflight.Group
}

// QuoteServiceConfig contains the dependencies and tuning of the quote service.
type QuoteServiceConfig struct {
	Provider ports.QuoteProvider
	Enricher *CompetitorEnricher
	Cache    ports.QuoteCache
	Clock    ports.Clock
	Logger   *slog.Logger

	// TTL is how long a composite quote is served from the cache.
	TTL time.Duration

	// UpstreamRetries is how many extra provider attempts a retryable
	// UpstreamError gets. Capped at 3.
	UpstreamRetries int

	BatchConcurrency int
	MaxBatchSymbols  int

	// FetchTimeout bounds the shared fetch behind a miss, which runs
	// detached from any single caller.
	FetchTimeout time.Duration
}

// NewQuoteService creates a new quote service with the provided dependencies.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Provider == nil || cfg.Cache == nil {
		panic("app: quote service requires a provider and a cache")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "app.QuoteService"))

	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}

	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	maxSymbols := cfg.MaxBatchSymbols
	if maxSymbols <= 0 {
		maxSymbols = defaultMaxBatchSymbols
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	return &QuoteService{
		provider:         cfg.Provider,
		enricher:         cfg.Enricher,
		cache:            cfg.Cache,
		clock:            clock,
		tracer:           otel.Tracer(instrumentationName),
		logger:           logger,
		ttl:              ttl,
		retries:          min(max(cfg.UpstreamRetries, 0), maxUpstreamRetries),
		batchConcurrency: concurrency,
		maxBatchSymbols:  maxSymbols,
		fetchTimeout:     fetchTimeout,
	}
}

// GetQuote returns the composite quote for symbol on date (domain.Latest()
// for the most recent session).
//
// Errors: ValidationError for a malformed symbol, NotFoundError for an
// unknown symbol, InvalidDateError for an unusable date and UpstreamError
// when the provider cannot answer. Enrichment failures never surface.
func (s *QuoteService) GetQuote(ctx context.Context, rawSymbol string, date domain.QuoteDate) (*domain.CompositeQuote, error) {
	symbol, err := domain.NormalizeSymbol(rawSymbol)
	if err != nil {
		return nil, err
	}

	key := domain.NewQuoteKey(symbol, date)

	ctx, span := s.tracer.Start(ctx, "QuoteService.GetQuote",
		trace.WithAttributes(attribute.String("quote.key", key.String())))
	defer span.End()

	ctx = logging.WithContext(ctx, logging.FromContextOr(ctx, s.logger))
	ctx = logging.WithSymbol(ctx, symbol)

	if cached, ok := s.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		s.loggerFor(ctx).DebugContext(ctx, "quote served from cache", slog.String("key", key.String()))

		return cached.Clone(), nil
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Callers for the same key share one fetch. It runs detached so a caller
	// going away does not fail the others; fetchTimeout bounds it.
	ch := s.inflight.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		return s.fetch(fetchCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())

			return nil, res.Err
		}

		if res.Shared {
			span.SetAttributes(attribute.Bool("quote.coalesced", true))
		}

		quote, _ := res.Val.(*domain.CompositeQuote)

		return quote.Clone(), nil
	case <-ctx.Done():
		span.RecordError(ctx.Err())

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewUpstreamError("quote-provider", "timed out waiting for quote "+key.String(), ctx.Err())
		}

		return nil, fmt.Errorf("waiting for quote %s: %w", key, ctx.Err())
	}
}

// fetch resolves one miss: reject future dates, call the provider, check the
// quote is self-consistent, enrich it, then cache it.
func (s *QuoteService) fetch(ctx context.Context, key domain.QuoteKey) (*domain.CompositeQuote, error) {
	pipeline := MissPipeline[domain.QuoteKey, *domain.CompositeQuote]{
		Name: "GetQuote",
		Validate: func(_ context.Context, key domain.QuoteKey) error {
			today := domain.NewQuoteDate(s.clock.Now())
			if key.Date.After(today) {
				return domain.NewInvalidDateError(key.Date.String(), "date is in the future")
			}

			return nil
		},
		Fetch: func(ctx context.Context, key domain.QuoteKey) (*domain.CompositeQuote, error) {
			quote, err := s.fetchQuote(ctx, key)
			if err != nil {
				return nil, err
			}

			// An inconsistent quote is never cached, so skip enrichment for it.
			if err := checkQuote(quote, key); err != nil {
				return nil, err
			}

			enrichment := s.enricher.Enrich(ctx, key.Symbol)

			return domain.NewCompositeQuote(*quote, enrichment, s.clock.Now()), nil
		},
		Verify: func(_ context.Context, key domain.QuoteKey, composite *domain.CompositeQuote) error {
			return checkQuote(&composite.Quote, key)
		},
		Store: func(ctx context.Context, key domain.QuoteKey, composite *domain.CompositeQuote) {
			s.cache.Put(ctx, key, composite, s.ttl)
		},
	}

	return pipeline.Run(ctx, s.logger, key)
}

func checkQuote(quote *domain.StockQuote, key domain.QuoteKey) error {
	if err := quote.Validate(key.Symbol); err != nil {
		return domain.NewPermanentUpstreamError("quote-provider", "inconsistent quote: "+err.Error(), nil)
	}

	return nil
}

// fetchQuote calls the provider, retrying retryable upstream failures immediately.
func (s *QuoteService) fetchQuote(ctx context.Context, key domain.QuoteKey) (*domain.StockQuote, error) {
	var err error

	for attempt := 0; attempt <= s.retries; attempt++ {
		var quote *domain.StockQuote

		quote, err = s.provider.FetchQuote(ctx, key.Symbol, key.Date)
		if err == nil {
			return quote, nil
		}

		if !domain.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}

		if attempt < s.retries {
			s.loggerFor(ctx).WarnContext(ctx, "provider failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Any("error", err))
		}
	}

	return nil, err
}

func (s *QuoteService) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

// QuoteResult is one symbol's outcome in a batch lookup.
type QuoteResult struct {
	Symbol string
	Quote  *domain.CompositeQuote
	Err    error
}

// GetQuotes looks up several symbols with bounded concurrency. Symbols are
// de-duplicated after normalization and keep their first-seen order; each
// result carries its own error.
func (s *QuoteService) GetQuotes(ctx context.Context, symbols []string, date domain.QuoteDate) ([]QuoteResult, error) {
	seen := make(map[string]struct{}, len(symbols))
	unique := make([]string, 0, len(symbols))

	for _, raw := range symbols {
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) == 0 {
		return nil, domain.NewValidationError("symbols", "must not be empty")
	}

	if len(unique) > s.maxBatchSymbols {
		return nil, domain.NewValidationErrorWithValue("symbols",
			fmt.Sprintf("at most %d symbols per request", s.maxBatchSymbols), len(unique))
	}

	outcomes := boundedMap(ctx, s.batchConcurrency, unique,
		func(ctx context.Context, symbol string) (*domain.CompositeQuote, error) {
			return s.GetQuote(ctx, symbol, date)
		})

	results := make([]QuoteResult, len(unique))
	for i, o := range outcomes {
		results[i] = QuoteResult{Symbol: unique[i], Quote: o.value, Err: o.err}
	}

	return results, nil
}
