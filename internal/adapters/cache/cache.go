package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

// Backend is a quote cache that can be swept and closed.
type Backend interface {
	ports.QuoteCache
	Sweepable
	io.Closer
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*SQLite)(nil)
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.CacheConfig, clock ports.Clock, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(clock, cfg.MaxEntries, logger), nil
	case "sqlite":
		store, err := OpenSQLite(ctx, cfg.SQLitePath, clock, logger)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
