// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUpstream, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

// QuoteProvider fetches canonical price data from the paid market data API.
//
// Implementations must not retry; the caller owns the retry policy.
// Errors:
//   - domain.NotFoundError when the symbol is unknown
//   - domain.InvalidDateError when date is malformed, in the future,
//     before coverage, or has no data for that exact day
//   - domain.UpstreamError for transport, timeout, rate limit, auth or 5xx failures
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string, date domain.QuoteDate) (*domain.StockQuote, error)
}

// CompetitorSource scrapes the secondary source for competitor and
// performance data. Errors are returned as-is; the application layer decides
// how to degrade.
type CompetitorSource interface {
	FetchProfile(ctx context.Context, symbol string) (*domain.Enrichment, error)
}

// QuoteCache stores composite quotes for a bounded time.
//
// There is no error path: a failing backend behaves like a miss on Get and
// silently drops the entry on Put. Expired entries are never returned.
type QuoteCache interface {
	Get(ctx context.Context, key domain.QuoteKey) (*domain.CompositeQuote, bool)
	Put(ctx context.Context, key domain.QuoteKey, quote *domain.CompositeQuote, ttl time.Duration)
}

// Clock supplies the current time. Tests substitute a controllable clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
