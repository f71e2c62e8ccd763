package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

// QuoteQuery is the query string of GET /api/v1/stocks/:symbol.
type QuoteQuery struct {
	Date string `form:"date" json:"date" validate:"omitempty,quotedate"`
}

// QuoteDate parses Date, empty meaning latest.
func (q QuoteQuery) QuoteDate() (domain.QuoteDate, error) {
	return domain.ParseQuoteDate(q.Date)
}

// BatchQuoteQuery is the query string of GET /api/v1/stocks.
type BatchQuoteQuery struct {
	Symbols string `form:"symbols" json:"symbols" validate:"symbollist"`
	Date    string `form:"date"    json:"date"    validate:"omitempty,quotedate"`
}

// SymbolList splits the comma separated symbols.
func (q BatchQuoteQuery) SymbolList() []string {
	return strings.Split(q.Symbols, ",")
}

// QuoteDate parses Date, empty meaning latest.
func (q BatchQuoteQuery) QuoteDate() (domain.QuoteDate, error) {
	return domain.ParseQuoteDate(q.Date)
}

// QuoteResponse is the composite quote returned to API clients.
// Prices are decimal strings so no precision is lost.
type QuoteResponse struct {
	Symbol      string               `json:"symbol"`
	CompanyName string               `json:"companyName"`
	Date        string               `json:"date"`
	SessionDate string               `json:"sessionDate,omitempty"`
	Open        decimal.Decimal      `json:"open"`
	High        decimal.Decimal      `json:"high"`
	Low         decimal.Decimal      `json:"low"`
	Close       decimal.Decimal      `json:"close"`
	Volume      int64                `json:"volume"`
	Competitors []CompetitorResponse `json:"competitors"`
	Performance *PerformanceResponse `json:"performance,omitempty"`
	FetchedAt   time.Time            `json:"fetchedAt"`
}

// CompetitorResponse is one competitor entry.
type CompetitorResponse struct {
	Name      string            `json:"name"`
	MarketCap MarketCapResponse `json:"marketCap"`
}

// MarketCapResponse is a market capitalization.
type MarketCapResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PerformanceResponse holds trailing returns in percent.
type PerformanceResponse struct {
	FiveDay    *decimal.Decimal `json:"fiveDay,omitempty"`
	OneMonth   *decimal.Decimal `json:"oneMonth,omitempty"`
	ThreeMonth *decimal.Decimal `json:"threeMonth,omitempty"`
	YearToDate *decimal.Decimal `json:"yearToDate,omitempty"`
	OneYear    *decimal.Decimal `json:"oneYear,omitempty"`
}

// NewQuoteResponse converts a domain composite quote.
func NewQuoteResponse(q *domain.CompositeQuote) *QuoteResponse {
	resp := &QuoteResponse{
		Symbol:      q.Quote.Symbol,
		CompanyName: q.Quote.CompanyName,
		Date:        q.Quote.Date.String(),
		Open:        q.Quote.Open,
		High:        q.Quote.High,
		Low:         q.Quote.Low,
		Close:       q.Quote.Close,
		Volume:      q.Quote.Volume,
		Competitors: make([]CompetitorResponse, 0, len(q.Competitors)),
		FetchedAt:   q.FetchedAt.UTC(),
	}

	if !q.Quote.SessionDate.IsZero() {
		resp.SessionDate = q.Quote.SessionDate.Format(domain.DateLayout)
	}

	for _, c := range q.Competitors {
		resp.Competitors = append(resp.Competitors, CompetitorResponse{
			Name:      c.Name,
			MarketCap: MarketCapResponse{Amount: c.MarketCap.Amount, Currency: c.MarketCap.Currency},
		})
	}

	if p := q.Performance; !p.IsEmpty() {
		resp.Performance = &PerformanceResponse{
			FiveDay:    p.FiveDay,
			OneMonth:   p.OneMonth,
			ThreeMonth: p.ThreeMonth,
			YearToDate: p.YearToDate,
			OneYear:    p.OneYear,
		}
	}

	return resp
}

// BatchQuoteResponse carries one entry per requested symbol.
type BatchQuoteResponse struct {
	Results []BatchQuoteItem `json:"results"`
}

// BatchQuoteItem is either a quote or an error for one symbol.
type BatchQuoteItem struct {
	Symbol string         `json:"symbol"`
	Status int            `json:"status"`
	Quote  *QuoteResponse `json:"quote,omitempty"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}
