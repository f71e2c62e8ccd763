// Package domain contains core business entities and rules.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for quote dates.
const DateLayout = "2006-01-02"

// LatestKey is the date component used for quotes without an explicit date.
const LatestKey = "latest"

const maxSymbolLength = 12

// QuoteDate is a calendar day for a historical quote.
// The zero value means "latest" and is never equal to any explicit date.
type QuoteDate struct {
	day time.Time
}

// Latest returns the date that requests the most recent session.
func Latest() QuoteDate {
	return QuoteDate{}
}

// NewQuoteDate truncates t to its calendar day in UTC.
func NewQuoteDate(t time.Time) QuoteDate {
	y, m, d := t.Date()

	return QuoteDate{day: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseQuoteDate parses YYYY-MM-DD. An empty string means latest.
func ParseQuoteDate(s string) (QuoteDate, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, LatestKey) {
		return Latest(), nil
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return QuoteDate{}, NewInvalidDateError(s, "expected format YYYY-MM-DD")
	}

	return NewQuoteDate(t), nil
}

// IsLatest reports whether the date requests the latest session.
func (d QuoteDate) IsLatest() bool {
	return d.day.IsZero()
}

// Time returns the day at midnight UTC, or the zero time for latest.
func (d QuoteDate) Time() time.Time {
	return d.day
}

// After reports whether d is a later calendar day than other.
// Latest is never after anything.
func (d QuoteDate) After(other QuoteDate) bool {
	if d.IsLatest() || other.IsLatest() {
		return false
	}

	return d.day.After(other.day)
}

// Before reports whether d is an earlier calendar day than other.
func (d QuoteDate) Before(other QuoteDate) bool {
	if d.IsLatest() || other.IsLatest() {
		return false
	}

	return d.day.Before(other.day)
}

// String returns "latest" or YYYY-MM-DD.
func (d QuoteDate) String() string {
	if d.IsLatest() {
		return LatestKey
	}

	return d.day.Format(DateLayout)
}

// NormalizeSymbol upper-cases and validates a ticker symbol.
// Letters, digits, dots and dashes are accepted (BRK.B, RDS-A).
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", NewValidationError("symbol", "must not be empty")
	}

	if len(symbol) > maxSymbolLength {
		return "", NewValidationErrorWithValue("symbol", "too long", raw)
	}

	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return "", NewValidationErrorWithValue("symbol", "contains invalid characters", raw)
		}
	}

	return symbol, nil
}

// QuoteKey identifies a quote: a normalized symbol plus a date or latest.
type QuoteKey struct {
	Symbol string
	Date   QuoteDate
}

// NewQuoteKey builds a key, case-folding the symbol.
func NewQuoteKey(symbol string, date QuoteDate) QuoteKey {
	return QuoteKey{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Date: date}
}

// String returns the canonical cache form, e.g. "MSFT@latest".
func (k QuoteKey) String() string {
	return k.Symbol + "@" + k.Date.String()
}

// StockQuote is the provider's price data for one symbol and date.
// This is a domain entity - it has no knowledge of external systems.
type StockQuote struct {
	Symbol      string
	CompanyName string

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume int64

	// Date is the requested date (latest or explicit).
	Date QuoteDate

	// SessionDate is the trading day the provider reported the values for.
	SessionDate time.Time
}

// Validate checks that the provider returned a coherent quote for symbol.
func (q *StockQuote) Validate(symbol string) error {
	if q.Symbol != symbol {
		return NewValidationErrorWithValue("symbol", "provider returned a different symbol", q.Symbol)
	}

	for name, v := range map[string]decimal.Decimal{"open": q.Open, "high": q.High, "low": q.Low, "close": q.Close} {
		if !v.IsPositive() {
			return NewValidationErrorWithValue(name, "must be positive", v.String())
		}
	}

	if q.High.LessThan(q.Low) {
		return NewValidationError("high", "must not be lower than low")
	}

	if q.Volume < 0 {
		return NewValidationErrorWithValue("volume", "must not be negative", q.Volume)
	}

	return nil
}

// MarketCap is a market capitalization in a currency.
type MarketCap struct {
	Amount   decimal.Decimal
	Currency string
}

// Competitor is a peer company reported by the secondary source.
type Competitor struct {
	Name      string
	MarketCap MarketCap
}

// Performance holds trailing returns in percent. Missing periods are nil.
type Performance struct {
	FiveDay    *decimal.Decimal
	OneMonth   *decimal.Decimal
	ThreeMonth *decimal.Decimal
	YearToDate *decimal.Decimal
	OneYear    *decimal.Decimal
}

// IsEmpty reports whether no period was available.
func (p *Performance) IsEmpty() bool {
	return p == nil || (p.FiveDay == nil && p.OneMonth == nil && p.ThreeMonth == nil &&
		p.YearToDate == nil && p.OneYear == nil)
}

// Enrichment is what the secondary source contributes to a quote.
type Enrichment struct {
	Competitors []Competitor
	Performance *Performance
}

// CompositeQuote is the merged result returned to callers and stored in the cache.
type CompositeQuote struct {
	Quote       StockQuote
	Competitors []Competitor
	Performance *Performance
	FetchedAt   time.Time
}

// NewCompositeQuote merges a quote with its enrichment.
func NewCompositeQuote(quote StockQuote, enrichment Enrichment, fetchedAt time.Time) *CompositeQuote {
	competitors := enrichment.Competitors
	if competitors == nil {
		competitors = []Competitor{}
	}

	return &CompositeQuote{
		Quote:       quote,
		Competitors: competitors,
		Performance: enrichment.Performance,
		FetchedAt:   fetchedAt,
	}
}

// Key returns the cache key of the composite.
func (c *CompositeQuote) Key() QuoteKey {
	return NewQuoteKey(c.Quote.Symbol, c.Quote.Date)
}

// Clone returns a copy that shares no mutable state with c.
func (c *CompositeQuote) Clone() *CompositeQuote {
	if c == nil {
		return nil
	}

	out := *c
	out.Competitors = make([]Competitor, len(c.Competitors))
	copy(out.Competitors, c.Competitors)

	if c.Performance != nil {
		perf := *c.Performance
		out.Performance = &perf
	}

	return &out
}
