// Package cache provides the quote cache backends: an in-process map and a
// SQLite file that survives restarts. Both expire entries lazily on read and
// can be swept on a schedule.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

type entry struct {
	quote     *domain.CompositeQuote
	createdAt time.Time
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Memory is a mutex-guarded in-process cache.
type Memory struct {
	clock      ports.Clock
	maxEntries int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory creates an in-process cache. maxEntries <= 0 means unbounded.
func NewMemory(clock ports.Clock, maxEntries int, logger *slog.Logger) *Memory {
	if clock == nil {
		clock = ports.SystemClock
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Memory{
		clock:      clock,
		maxEntries: maxEntries,
		logger:     logger,
		entries:    make(map[string]entry),
	}
}

// Get returns a copy of the entry for key unless it is missing or expired.
func (m *Memory) Get(_ context.Context, key domain.QuoteKey) (*domain.CompositeQuote, bool) {
	k := key.String()
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok {
		return nil, false
	}

	if e.expired(now) {
		delete(m.entries, k)
		return nil, false
	}

	return e.quote.Clone(), true
}

// Put stores a copy of quote for ttl, replacing any previous entry.
func (m *Memory) Put(ctx context.Context, key domain.QuoteKey, quote *domain.CompositeQuote, ttl time.Duration) {
	if quote == nil || ttl <= 0 {
		return
	}

	k := key.String()
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[k]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked(ctx, now)
	}

	m.entries[k] = entry{quote: quote.Clone(), createdAt: now, expiresAt: now.Add(ttl)}
}

// evictLocked drops expired entries, then the oldest if still full.
func (m *Memory) evictLocked(ctx context.Context, now time.Time) {
	removed := m.deleteExpiredLocked(now)
	if len(m.entries) < m.maxEntries {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
	)

	for k, e := range m.entries {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}

	delete(m.entries, oldestKey)
	m.logger.DebugContext(ctx, "cache full, evicted oldest entry",
		slog.String("key", oldestKey),
		slog.Int("expired_removed", removed))
}

func (m *Memory) deleteExpiredLocked(now time.Time) int {
	removed := 0

	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}

	return removed
}

// DeleteExpired removes every expired entry and reports how many were removed.
func (m *Memory) DeleteExpired(_ context.Context) (int, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteExpiredLocked(now), nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Close is a no-op; it lets Memory satisfy Backend.
func (m *Memory) Close() error {
	return nil
}
