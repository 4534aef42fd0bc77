// Package fields discovers the dynamic columns of a heterogeneous record set.
// District CRM exports keep growing new fields, so the approvals table shows
// whatever meaningful extras the current rows happen to carry.
package fields

import (
	"sort"
	"strings"
	"unicode"

	"solardesk/api/internal/record"
)

// Descriptor is one discovered dynamic column.
type Descriptor struct {
	Key         string `json:"key"`         // normalized (lower-cased) field key
	OriginalKey string `json:"originalKey"` // casing from the first record that carried it
	Label       string `json:"label"`
}

// hiddenFields are internal bookkeeping keys that never become columns.
var hiddenFields = map[string]struct{}{
	"id":                  {},
	"created_at":          {},
	"updated_at":          {},
	"inserted_at":         {},
	"deleted_at":          {},
	"approval_updated_at": {},
	"record_version":      {},
}

// standardFields are already rendered by the fixed approval columns, synonyms
// included, so discovery skips them.
var standardFields = map[string]struct{}{
	"project_name":       {},
	"customer_name":      {},
	"order_date":         {},
	"capacity":           {},
	"capacity_kw":        {},
	"location":           {},
	"power_bill_number":  {},
	"project_cost":       {},
	"site_visit":         {},
	"site_visit_status":  {},
	"payment_amount":     {},
	"approval_status":    {},
	"project_id":         {},
	"chitoor_project_id": {},
	"linked_project_id":  {},
	"project_uuid":       {},
	"service_number":     {},
}

// Discover returns the dynamic columns of the record set: every key outside
// the hidden and standard sets that has a meaningful value in at least one
// record. The first record to carry a key fixes the casing used for its
// label; later records only widen the meaningfulness check. Output is sorted
// by label so column order is stable regardless of row order.
func Discover(records []record.Record) []Descriptor {
	firstCasing := make(map[string]string)
	meaningful := make(map[string]struct{})

	for _, rec := range records {
		for _, key := range rec.Keys() {
			normalized := strings.ToLower(strings.TrimSpace(key))
			if normalized == "" {
				continue
			}
			if _, hidden := hiddenFields[normalized]; hidden {
				continue
			}
			if _, standard := standardFields[normalized]; standard {
				continue
			}
			if _, ok := firstCasing[normalized]; !ok {
				firstCasing[normalized] = key
			}
			if rec[key].Meaningful() {
				meaningful[normalized] = struct{}{}
			}
		}
	}

	out := make([]Descriptor, 0, len(meaningful))
	for normalized := range meaningful {
		original := firstCasing[normalized]
		out = append(out, Descriptor{
			Key:         normalized,
			OriginalKey: original,
			Label:       Label(original),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Label turns a raw field key into a display heading: underscores become
// spaces, camelCase boundaries split, words are title-cased, and the literal
// word "id" renders as "ID".
func Label(key string) string {
	spaced := strings.ReplaceAll(key, "_", " ")
	spaced = splitCamel(spaced)

	words := strings.Fields(spaced)
	for i, word := range words {
		if strings.EqualFold(word, "id") {
			words[i] = "ID"
			continue
		}
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func splitCamel(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
