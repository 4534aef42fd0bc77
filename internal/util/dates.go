package util

import (
	"strings"
	"time"
)

// dateLayouts covers the formats that show up in imported CRM rows. Order
// matters: the most specific layouts are tried first so "2024-03-15" does not
// get misread by a shorter layout.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate parses a calendar date from the loosely formatted strings found
// in record fields. The boolean is false when nothing parses.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
