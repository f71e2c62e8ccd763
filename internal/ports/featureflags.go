package ports

import (
	"context"
)

// Flag names evaluated by the application.
const (
	// FlagCompetitorEnrichment toggles the scraping step of GetQuote.
	FlagCompetitorEnrichment = "competitor-enrichment"

	// FlagPerformanceData keeps or strips trailing performance figures.
	FlagPerformanceData = "performance-data"

	// FlagMaxCompetitors caps the competitor list. Zero or unset keeps all.
	FlagMaxCompetitors = "max-competitors"
)

// FeatureFlags evaluates runtime switches. The default is returned for
// unknown flags and for values of the wrong type.
type FeatureFlags interface {
	IsEnabled(ctx context.Context, flag string, defaultValue bool) bool
	GetInt(ctx context.Context, flag string, defaultValue int) int
}
