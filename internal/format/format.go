// Package format renders raw record values into display strings. The rules
// are heuristic on purpose: the only type information available for a dynamic
// field is its name and the shape of the value itself.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"solardesk/api/internal/record"
	"solardesk/api/internal/util"
)

// Placeholder is rendered for values with nothing to show.
const Placeholder = "—"

// currencyKeywords mark a field as money when any of them appears in the
// field name.
var currencyKeywords = []string{
	"amount", "cost", "price", "payment", "value", "fee", "charge", "subsidy",
}

// dateKeywords mark a field as date-like by name alone.
var dateKeywords = []string{"date", "_at", "timestamp", "deadline"}

const dateLayout = "02 Jan 2006"

// Formatter renders values for one configured locale. The defaults match the
// reference deployment: Indian digit grouping and rupees with no paise.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// New builds a Formatter for the given BCP 47 tag and currency symbol.
// Unparseable tags fall back to en-IN; an empty symbol falls back to the
// rupee sign.
func New(localeTag, currencySymbol string) *Formatter {
	tag, err := language.Parse(localeTag)
	if err != nil {
		tag = language.MustParse("en-IN")
	}
	if strings.TrimSpace(currencySymbol) == "" {
		currencySymbol = "₹"
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		symbol:  currencySymbol,
	}
}

// Format renders one field value. It is total: any value shape produces a
// string and the function never panics.
func (f *Formatter) Format(fieldKey string, v record.Value) string {
	if !v.Meaningful() {
		return Placeholder
	}

	switch v.Kind() {
	case record.KindNumber:
		if isCurrencyField(fieldKey) {
			return f.currency(v.Number())
		}
		return f.plainNumber(v.Number())
	case record.KindBool:
		if v.Bool() {
			return "Yes"
		}
		return "No"
	case record.KindString:
		return f.formatString(fieldKey, v.Str())
	case record.KindSeq:
		return f.formatSeq(v.Items())
	case record.KindMap:
		return compactJSON(v)
	default:
		return strings.TrimSpace(v.Text())
	}
}

func (f *Formatter) currency(n float64) string {
	rounded := math.Round(n)
	return f.symbol + f.printer.Sprint(number.Decimal(rounded, number.MaxFractionDigits(0)))
}

func (f *Formatter) plainNumber(n float64) string {
	return f.printer.Sprint(number.Decimal(n, number.MaxFractionDigits(6)))
}

func (f *Formatter) formatString(fieldKey, s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Placeholder
	}

	if isDateField(fieldKey) {
		if t, ok := util.ParseDate(trimmed); ok {
			return t.Format(dateLayout)
		}
		// Name said date but the content does not parse; show it as-is.
		return trimmed
	}

	if strings.ContainsAny(trimmed, "0123456789-/") {
		if t, ok := util.ParseDate(trimmed); ok {
			return t.Format(dateLayout)
		}
	}
	return trimmed
}

func (f *Formatter) formatSeq(items []record.Value) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch item.Kind() {
		case record.KindMap, record.KindSeq:
			s = compactJSON(item)
		default:
			s = item.Text()
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return Placeholder
	}
	return strings.Join(parts, ", ")
}

// compactJSON serializes container values; a failed marshal degrades to the
// generic string form rather than propagating an error.
func compactJSON(v record.Value) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v.Text())
	}
	return string(data)
}

func isCurrencyField(fieldKey string) bool {
	folded := strings.ToLower(fieldKey)
	for _, kw := range currencyKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func isDateField(fieldKey string) bool {
	folded := strings.ToLower(fieldKey)
	for _, kw := range dateKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}
