package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

func TestStatic_IsEnabled(t *testing.T) {
	ctx := context.Background()
	f := NewStatic(map[string]any{
		"competitor-enrichment": false,
		"performance_data":      "on",
		"numeric":               1,
		"garbage":               "maybe",
	})

	tests := []struct {
		name     string
		flag     string
		def      bool
		expected bool
	}{
		{name: "bool value", flag: ports.FlagCompetitorEnrichment, def: true, expected: false},
		{name: "string value with underscore key", flag: ports.FlagPerformanceData, def: false, expected: true},
		{name: "numeric value", flag: "numeric", def: false, expected: true},
		{name: "unparseable falls back", flag: "garbage", def: true, expected: true},
		{name: "unknown falls back", flag: "missing", def: true, expected: true},
		{name: "case insensitive", flag: "Competitor-Enrichment", def: true, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.IsEnabled(ctx, tt.flag, tt.def))
		})
	}
}

func TestStatic_GetInt(t *testing.T) {
	ctx := context.Background()
	f := NewStatic(map[string]any{"a": 3, "b": float64(7), "c": "11", "d": "x"})

	assert.Equal(t, 3, f.GetInt(ctx, "a", 0))
	assert.Equal(t, 7, f.GetInt(ctx, "b", 0))
	assert.Equal(t, 11, f.GetInt(ctx, "c", 0))
	assert.Equal(t, 42, f.GetInt(ctx, "d", 42))
	assert.Equal(t, 42, f.GetInt(ctx, "missing", 42))
}

func TestNewStatic_CopiesInput(t *testing.T) {
	values := map[string]any{"flag": true}
	f := NewStatic(values)
	values["flag"] = false

	assert.True(t, f.IsEnabled(context.Background(), "flag", false))
}
