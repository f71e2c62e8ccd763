package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

const defaultEnrichTimeout = 10 * time.Second

// CompetitorEnricher wraps the competitor source with the degradation policy:
// whatever goes wrong, the quote is still served with an empty list.
type CompetitorEnricher struct {
	source  ports.CompetitorSource
	flags   ports.FeatureFlags
	timeout time.Duration
	logger  *slog.Logger
}

// EnricherConfig configures a CompetitorEnricher.
type EnricherConfig struct {
	Source  ports.CompetitorSource
	Flags   ports.FeatureFlags
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewCompetitorEnricher creates an enricher. A nil Source disables enrichment.
func NewCompetitorEnricher(cfg EnricherConfig) *CompetitorEnricher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEnrichTimeout
	}

	return &CompetitorEnricher{
		source:  cfg.Source,
		flags:   cfg.Flags,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "app.CompetitorEnricher")),
	}
}

// Enrich returns competitors and performance for symbol. It never fails.
func (e *CompetitorEnricher) Enrich(ctx context.Context, symbol string) domain.Enrichment {
	empty := domain.Enrichment{Competitors: []domain.Competitor{}}

	if e == nil || e.source == nil {
		return empty
	}

	if !e.flagEnabled(ctx, ports.FlagCompetitorEnrichment) {
		return empty
	}

	logger := logging.FromContextOr(ctx, e.logger)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	profile, err := e.source.FetchProfile(ctx, symbol)
	if err != nil {
		logger.WarnContext(ctx, "competitor enrichment failed, serving quote without it",
			slog.String("symbol", symbol),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))

		return empty
	}

	if profile == nil || len(profile.Competitors) == 0 {
		logger.InfoContext(ctx, "no competitors found", slog.String("symbol", symbol))
	}

	out := empty
	if profile != nil {
		if profile.Competitors != nil {
			out.Competitors = e.capCompetitors(ctx, profile.Competitors)
		}

		if !profile.Performance.IsEmpty() && e.flagEnabled(ctx, ports.FlagPerformanceData) {
			out.Performance = profile.Performance
		}
	}

	logger.DebugContext(ctx, "enrichment complete",
		slog.String("symbol", symbol),
		slog.Int("competitors", len(out.Competitors)),
		slog.Bool("performance", out.Performance != nil),
		slog.Duration("duration", time.Since(start)))

	return out
}

func (e *CompetitorEnricher) flagEnabled(ctx context.Context, flag string) bool {
	if e.flags == nil {
		return true
	}

	return e.flags.IsEnabled(ctx, flag, true)
}

func (e *CompetitorEnricher) capCompetitors(ctx context.Context, competitors []domain.Competitor) []domain.Competitor {
	if len(competitors) == 0 || e.flags == nil {
		return competitors
	}

	if limit := e.flags.GetInt(ctx, ports.FlagMaxCompetitors, 0); limit > 0 && len(competitors) > limit {
		return competitors[:limit]
	}

	return competitors
}
