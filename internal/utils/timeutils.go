package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// layouts tried before falling back to free-form parsing. Spreadsheet exports
// commonly drop the zone or the "T" separator.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 and common spreadsheet layouts, Unix seconds,
// and finally human-readable dates. Zone-less values are taken as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unix < 0 {
			return time.Time{}, fmt.Errorf("unix timestamp must be non-negative: %d", unix)
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		DefaultTimezone: time.UTC,
		// Event logs describe the past, so "monday" means the last one.
		PreferredDateSource: dps.Past,
	}
	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	if parsed.IsZero() {
		return time.Time{}, fmt.Errorf("parse time %q: no date found", value)
	}
	return parsed.Time.UTC(), nil
}

// DurationHours converts a pair of timestamps into an hour duration.
func DurationHours(start, end time.Time) float64 {
	if end.Before(start) {
		start, end = end, start
	}
	return end.Sub(start).Hours()
}
