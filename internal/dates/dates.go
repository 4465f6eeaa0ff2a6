// Package dates parses the date shapes found on library records.
//
// Records carry dates as full datetimes (addedAt, lastViewedAt), calendar
// dates (originallyAvailableAt), bare years (year, parentYear) and, in
// imported tags, month-precision or compact dates. Comparison and dedup both
// parse through here so they agree on what counts as a date.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Precision is how much of a point in time a parsed value pins down.
type Precision int

const (
	Year Precision = iota + 1
	Month
	Day
	Instant
)

type layout struct {
	format    string
	precision Precision
	// compact layouts are only accepted by Parse; as comparison operands
	// they are plain numbers.
	compact bool
}

var layouts = []layout{
	{format: time.RFC3339, precision: Instant},
	{format: "2006-01-02T15:04:05", precision: Instant},
	{format: "2006-01-02 15:04:05", precision: Instant},
	{format: "2006-01-02T15:04", precision: Instant},
	{format: "2006-01-02", precision: Day},
	{format: "2006-01", precision: Month},
	{format: "20060102", precision: Day, compact: true},
}

// Parse reads any supported shape. Partial dates resolve to the first
// instant of their period, in UTC.
func Parse(s string) (time.Time, Precision, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if len(s) != len(l.format) && l.precision != Instant {
			continue
		}
		if t, err := time.Parse(l.format, s); err == nil {
			return t, l.precision, nil
		}
	}
	if len(s) == 4 {
		if year, err := strconv.Atoi(s); err == nil && year > 0 {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), Year, nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("invalid date: %q", s)
}

// ParseTemporal reports whether s is a calendar date or datetime, the shapes
// that compare chronologically rather than as numbers or text.
func ParseTemporal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if l.compact || l.precision < Day {
			continue
		}
		if t, err := time.Parse(l.format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
