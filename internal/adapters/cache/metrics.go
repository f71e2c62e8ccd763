package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

// Instrumented counts hits, misses and stores of the wrapped cache.
type Instrumented struct {
	next ports.QuoteCache

	hits   prometheus.Counter
	misses prometheus.Counter
	stores prometheus.Counter
}

// NewInstrumented wraps next. Counters are registered on reg, labelled with backend.
func NewInstrumented(next ports.QuoteCache, reg prometheus.Registerer, backend string) *Instrumented {
	factory := promauto.With(reg)
	lookups := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockquote",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Quote cache lookups by result.",
	}, []string{"backend", "result"})
	stores := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockquote",
		Subsystem: "cache",
		Name:      "stores_total",
		Help:      "Quote cache writes.",
	}, []string{"backend"})

	return &Instrumented{
		next:   next,
		hits:   lookups.WithLabelValues(backend, "hit"),
		misses: lookups.WithLabelValues(backend, "miss"),
		stores: stores.WithLabelValues(backend),
	}
}

// Get implements ports.QuoteCache.
func (c *Instrumented) Get(ctx context.Context, key domain.QuoteKey) (*domain.CompositeQuote, bool) {
	quote, ok := c.next.Get(ctx, key)
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}

	return quote, ok
}

// Put implements ports.QuoteCache.
func (c *Instrumented) Put(ctx context.Context, key domain.QuoteKey, quote *domain.CompositeQuote, ttl time.Duration) {
	c.next.Put(ctx, key, quote, ttl)
	c.stores.Inc()
}
