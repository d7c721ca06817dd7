package match

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Calendar-field comparison deliberately avoids epoch-difference
// arithmetic: a 60-second window straddling a DST transition would
// otherwise mis-compare.

// SameMinute reports whether two instants land in the same local minute
// after conversion to loc.
func SameMinute(a, b time.Time, loc *time.Location) bool {
	aa := a.In(loc)
	bb := b.In(loc)
	return aa.Year() == bb.Year() &&
		aa.Month() == bb.Month() &&
		aa.Day() == bb.Day() &&
		aa.Hour() == bb.Hour() &&
		aa.Minute() == bb.Minute()
}

// SameLocalDate reports whether an instant falls on the given calendar
// date after conversion to loc. Only the year/month/day of date are
// considered.
func SameLocalDate(a, date time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	dy, dm, dd := date.Date()
	return ay == dy && am == dm && ad == dd
}

var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 3:04 PM",
	"Jan 2, 2006, 3:04 PM",
	"January 2, 2006, 3:04 PM",
	"Mon, Jan 2, 2006, 3:04 PM",
}

// ParseTargetInstant parses the requested receipt datetime. Inputs without
// an explicit offset are interpreted in loc. An unparsable value is a
// configuration error and must be surfaced before any channel is queried.
func ParseTargetInstant(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty target datetime")
	}
	for _, layout := range instantLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	if parsed, err := mail.ParseDate(value); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("could not parse target datetime %q; use ISO format like 2026-01-19T17:18:00-05:00 or set a timezone", raw)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, Jan 2, 2006",
	"Monday, Jan 2, 2006",
	"Mon, January 2, 2006",
	"Monday, January 2, 2006",
}

// ParseTargetDate parses a date-only target and anchors it at local
// midnight in loc.
func ParseTargetDate(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty target date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			y, m, d := parsed.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
		}
	}
	if parsed, err := time.Parse(time.RFC3339, strings.Replace(value, "Z", "+00:00", 1)); err == nil {
		y, m, d := parsed.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("could not parse target date %q; use ISO date like 2026-02-08", raw)
}

// ParseFeedTime parses an issued/modified timestamp from the feed channel:
// ISO-8601 first, RFC-5322 as fallback.
func ParseFeedTime(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05Z0700", value); err == nil {
		return parsed, true
	}
	if parsed, err := mail.ParseDate(value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

var (
	parentheticalSuffix = regexp.MustCompile(`\s+\([^)]*\)\s*$`)

	// Header tooltip samples: "Mon, Jan 19, 2026, 5:18 PM" and the inline
	// "at" variant.
	uiLayouts = []string{
		"Mon, Jan 2, 2006, 3:04 PM",
		"Jan 2, 2006, 3:04 PM",
		"Mon, Jan 2, 2006 at 3:04 PM",
		"Jan 2, 2006 at 3:04 PM",
	}
)

// ParseUITimestamp parses a timestamp rendering scraped from the live UI.
// Relative suffixes like "(8 days ago)" are stripped and narrow spaces
// normalized before layout matching. Zone-less renderings are interpreted
// in loc.
func ParseUITimestamp(raw string, loc *time.Location) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	cleaned := strings.TrimSpace(parentheticalSuffix.ReplaceAllString(value, ""))
	cleaned = strings.NewReplacer(" ", " ", " ", " ").Replace(cleaned)

	for _, layout := range uiLayouts {
		if parsed, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return parsed, true
		}
	}
	if parsed, err := mail.ParseDate(cleaned); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}
