package cache

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleQuote(symbol string, date domain.QuoteDate) *domain.CompositeQuote {
	fiveDay := decimal.RequireFromString("2.5")

	return domain.NewCompositeQuote(
		domain.StockQuote{
			Symbol:      symbol,
			CompanyName: symbol + " Corp.",
			Open:        decimal.RequireFromString("410.10"),
			High:        decimal.RequireFromString("415.55"),
			Low:         decimal.RequireFromString("408.00"),
			Close:       decimal.RequireFromString("414.20"),
			Volume:      21_000_000,
			Date:        date,
			SessionDate: time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
		},
		domain.Enrichment{
			Competitors: []domain.Competitor{{
				Name:      "Apple Inc.",
				MarketCap: domain.MarketCap{Amount: decimal.RequireFromString("3090000000000"), Currency: "USD"},
			}},
			Performance: &domain.Performance{FiveDay: &fiveDay},
		},
		time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC),
	)
}
