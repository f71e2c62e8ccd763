// Package flags evaluates feature flags from the "features" section of the
// service configuration. Values are fixed for the life of the process.
package flags

import (
	"context"
	"strconv"
	"strings"

	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

// Static implements ports.FeatureFlags over a config map.
type Static struct {
	values map[string]any
}

var _ ports.FeatureFlags = (*Static)(nil)

// NewStatic copies values so later config mutations are not observed.
// Keys are matched case-insensitively; env overrides arrive lower-cased.
func NewStatic(values map[string]any) *Static {
	s := &Static{values: make(map[string]any, len(values))}
	for k, v := range values {
		s.values[normalize(k)] = v
	}

	return s
}

func normalize(flag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(flag)), "_", "-")
}

// IsEnabled returns the flag as a bool. Strings like "true", "1" or "on" are accepted.
func (s *Static) IsEnabled(_ context.Context, flag string, defaultValue bool) bool {
	v, ok := s.values[normalize(flag)]
	if !ok {
		return defaultValue
	}

	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "on", "yes":
			return true
		case "false", "0", "off", "no":
			return false
		}
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	}

	return defaultValue
}

// GetInt returns the flag as an int, or defaultValue when it is not numeric.
func (s *Static) GetInt(_ context.Context, flag string, defaultValue int) int {
	v, ok := s.values[normalize(flag)]
	if !ok {
		return defaultValue
	}

	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}

	return defaultValue
}
