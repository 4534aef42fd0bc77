// Package analytics derives the month-over-month series behind the dashboard
// tiles. Records carry dates in whichever field their upstream writer used,
// so bucketing takes an ordered list of candidate fields per source.
package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"solardesk/api/internal/record"
	"solardesk/api/internal/util"
)

// BucketByMonth counts records per "YYYY-MM" key. For each record the first
// present field in fieldPriority supplies the date; records whose date is
// absent or unparseable contribute to no bucket.
func BucketByMonth(records []record.Record, fieldPriority []string) map[string]int {
	buckets := make(map[string]int)
	for _, rec := range records {
		t, ok := recordDate(rec, fieldPriority)
		if !ok {
			continue
		}
		buckets[monthKey(t)]++
	}
	return buckets
}

func recordDate(rec record.Record, fieldPriority []string) (time.Time, bool) {
	for _, field := range fieldPriority {
		raw := rec.Text(field)
		if raw == "" {
			continue
		}
		return util.ParseDate(raw)
	}
	return time.Time{}, false
}

func monthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// UnionKeys merges the bucket keys of two series and sorts them
// chronologically (year major, month minor) for side-by-side charting.
func UnionKeys(a, b map[string]int) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for key := range a {
		seen[key] = struct{}{}
	}
	for key := range b {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		yi, mi := splitKey(keys[i])
		yj, mj := splitKey(keys[j])
		if yi != yj {
			return yi < yj
		}
		return mi < mj
	})
	return keys
}

func splitKey(key string) (int, int) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	return year, month
}

// MonthLabel renders a bucket key as a short chart label, e.g. "Jan 2024".
// Malformed keys come back unchanged.
func MonthLabel(key string) string {
	year, month := splitKey(key)
	if year == 0 || month < 1 || month > 12 {
		return key
	}
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return t.Format("Jan 2006")
}
