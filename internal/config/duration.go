package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration parses duration strings like "30s", "5m", "1h" and spelled-out
// forms like "1 minute" or "30 seconds".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration cannot be empty")
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("duration cannot be negative: %s", s)
		}
		return d, nil
	}

	normalized := strings.ToLower(s)
	normalized = strings.ReplaceAll(normalized, " ", "")

	replacements := []struct{ word, abbrev string }{
		{"seconds", "s"},
		{"second", "s"},
		{"minutes", "m"},
		{"minute", "m"},
		{"hours", "h"},
		{"hour", "h"},
	}
	for _, r := range replacements {
		normalized = strings.ReplaceAll(normalized, r.word, r.abbrev)
	}

	d, err := time.ParseDuration(normalized)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return d, nil
}
