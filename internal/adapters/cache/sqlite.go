package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS quote_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB    NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS quote_cache_expires_at ON quote_cache (expires_at);`

// SQLite persists entries in a single table so a restart does not cost
// paid upstream calls. Storage failures are logged and behave as misses.
type SQLite struct {
	db     *sql.DB
	clock  ports.Clock
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(ctx context.Context, path string, clock ports.Clock, logger *slog.Logger) (*SQLite, error) {
	if clock == nil {
		clock = ports.SystemClock
	}

	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &SQLite{db: db, clock: clock, logger: logger}, nil
}

// Get loads the entry for key unless it is missing, expired or unreadable.
func (s *SQLite) Get(ctx context.Context, key domain.QuoteKey) (*domain.CompositeQuote, bool) {
	var (
		payload   []byte
		expiresAt int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM quote_cache WHERE cache_key = ?`, key.String(),
	).Scan(&payload, &expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false
	case err != nil:
		s.logger.WarnContext(ctx, "cache read failed, treating as miss",
			slog.String("key", key.String()), slog.Any("error", err))
		return nil, false
	}

	if !s.clock.Now().Before(time.UnixMilli(expiresAt)) {
		return nil, false
	}

	quote, err := decodeRecord(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "cache entry unreadable, treating as miss",
			slog.String("key", key.String()), slog.Any("error", err))
		return nil, false
	}

	return quote, true
}

// Put writes quote for ttl, replacing any previous entry.
func (s *SQLite) Put(ctx context.Context, key domain.QuoteKey, quote *domain.CompositeQuote, ttl time.Duration) {
	if quote == nil || ttl <= 0 {
		return
	}

	payload, err := json.Marshal(newRecord(quote))
	if err != nil {
		s.logger.WarnContext(ctx, "cache encode failed", slog.String("key", key.String()), slog.Any("error", err))
		return
	}

	now := s.clock.Now()

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO quote_cache (cache_key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		key.String(), payload, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		s.logger.WarnContext(ctx, "cache write failed, entry dropped",
			slog.String("key", key.String()), slog.Any("error", err))
	}
}

// DeleteExpired removes every expired row.
func (s *SQLite) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quote_cache WHERE expires_at <= ?`, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deleting expired entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted entries: %w", err)
	}

	return int(n), nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// record is the stored JSON shape. It is owned by this package so domain
// types can change without breaking entries already on disk.
type record struct {
	Symbol      string             `json:"symbol"`
	CompanyName string             `json:"company_name"`
	Open        decimal.Decimal    `json:"open"`
	High        decimal.Decimal    `json:"high"`
	Low         decimal.Decimal    `json:"low"`
	Close       decimal.Decimal    `json:"close"`
	Volume      int64              `json:"volume"`
	Date        string             `json:"date"`
	SessionDate time.Time          `json:"session_date"`
	Competitors []competitorRecord `json:"competitors"`
	Performance *performanceRecord `json:"performance,omitempty"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

type competitorRecord struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type performanceRecord struct {
	FiveDay    *decimal.Decimal `json:"five_day,omitempty"`
	OneMonth   *decimal.Decimal `json:"one_month,omitempty"`
	ThreeMonth *decimal.Decimal `json:"three_month,omitempty"`
	YearToDate *decimal.Decimal `json:"year_to_date,omitempty"`
	OneYear    *decimal.Decimal `json:"one_year,omitempty"`
}

func newRecord(q *domain.CompositeQuote) record {
	r := record{
		Symbol:      q.Quote.Symbol,
		CompanyName: q.Quote.CompanyName,
		Open:        q.Quote.Open,
		High:        q.Quote.High,
		Low:         q.Quote.Low,
		Close:       q.Quote.Close,
		Volume:      q.Quote.Volume,
		Date:        q.Quote.Date.String(),
		SessionDate: q.Quote.SessionDate,
		Competitors: make([]competitorRecord, 0, len(q.Competitors)),
		FetchedAt:   q.FetchedAt,
	}

	for _, c := range q.Competitors {
		r.Competitors = append(r.Competitors, competitorRecord{
			Name: c.Name, Amount: c.MarketCap.Amount, Currency: c.MarketCap.Currency,
		})
	}

	if p := q.Performance; p != nil {
		r.Performance = &performanceRecord{
			FiveDay: p.FiveDay, OneMonth: p.OneMonth, ThreeMonth: p.ThreeMonth,
			YearToDate: p.YearToDate, OneYear: p.OneYear,
		}
	}

	return r
}

func decodeRecord(payload []byte) (*domain.CompositeQuote, error) {
	var r record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decoding cache record: %w", err)
	}

	date, err := domain.ParseQuoteDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("decoding cache record date: %w", err)
	}

	quote := domain.StockQuote{
		Symbol:      r.Symbol,
		CompanyName: r.CompanyName,
		Open:        r.Open,
		High:        r.High,
		Low:         r.Low,
		Close:       r.Close,
		Volume:      r.Volume,
		Date:        date,
		SessionDate: r.SessionDate,
	}

	enrichment := domain.Enrichment{Competitors: make([]domain.Competitor, 0, len(r.Competitors))}
	for _, c := range r.Competitors {
		enrichment.Competitors = append(enrichment.Competitors, domain.Competitor{
			Name:      c.Name,
			MarketCap: domain.MarketCap{Amount: c.Amount, Currency: c.Currency},
		})
	}

	if p := r.Performance; p != nil {
		enrichment.Performance = &domain.Performance{
			FiveDay: p.FiveDay, OneMonth: p.OneMonth, ThreeMonth: p.ThreeMonth,
			YearToDate: p.YearToDate, OneYear: p.OneYear,
		}
	}

	return domain.NewCompositeQuote(quote, enrichment, r.FetchedAt), nil
}
