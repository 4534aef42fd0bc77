// Package record models the schema-on-read rows served by the record store.
// Imported CRM rows carry fields nobody declared up front, so values are kept
// as an explicit tagged union instead of raw interface{} plumbing.
package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSeq
	KindMap
)

// Value is one field value of unknown shape: null, bool, number, string,
// sequence or keyed map. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	str     string
	seq     []Value
	entries map[string]Value
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, boolean: b} }
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }
func String(s string) Value  { return Value{kind: KindString, str: s} }

func Seq(items ...Value) Value {
	return Value{kind: KindSeq, seq: items}
}

func Map(entries map[string]Value) Value {
	return Value{kind: KindMap, entries: entries}
}

func (v Value) Kind() Kind                { return v.kind }
func (v Value) IsNull() bool              { return v.kind == KindNull }
func (v Value) Bool() bool                { return v.boolean }
func (v Value) Number() float64           { return v.number }
func (v Value) Str() string               { return v.str }
func (v Value) Items() []Value            { return v.seq }
func (v Value) Entries() map[string]Value { return v.entries }

// Meaningful reports whether the value is worth surfacing: null never is, a
// string must contain non-whitespace, and containers must hold at least one
// meaningful element. Numbers and booleans always count, including zero.
func (v Value) Meaningful() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindString:
		return strings.TrimSpace(v.str) != ""
	case KindSeq:
		for _, item := range v.seq {
			if item.Meaningful() {
				return true
			}
		}
		return false
	case KindMap:
		for _, entry := range v.entries {
			if entry.Meaningful() {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Text coerces the value to a plain string for comparisons and fallbacks.
// Whole numbers render without a decimal point so "123" compares equal to
// the numeric 123 coming from another collection.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v.any())
		}
		return string(data)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.any())
}

func (v Value) any() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		return v.number
	case KindString:
		return v.str
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.entries))
		for key, entry := range v.entries {
			out[key] = entry.any()
		}
		return out
	default:
		return nil
	}
}

// maxDepth bounds FromAny recursion so self-referential input degrades to
// null instead of overflowing the stack. Formatting the truncated branch is
// not an option: fmt itself recurses forever on a cyclic map.
const maxDepth = 32

// FromAny converts decoded JSON (or any loosely typed Go value) into a Value.
func FromAny(raw any) Value {
	return fromAny(raw, 0)
}

func fromAny(raw any, depth int) Value {
	if depth > maxDepth {
		return Null()
	}
	switch typed := raw.(type) {
	case nil:
		return Null()
	case Value:
		return typed
	case bool:
		return Bool(typed)
	case float64:
		return Number(typed)
	case float32:
		return Number(float64(typed))
	case int:
		return Number(float64(typed))
	case int32:
		return Number(float64(typed))
	case int64:
		return Number(float64(typed))
	case json.Number:
		if n, err := typed.Float64(); err == nil {
			return Number(n)
		}
		return String(typed.String())
	case string:
		return String(typed)
	case []any:
		items := make([]Value, len(typed))
		for i, item := range typed {
			items[i] = fromAny(item, depth+1)
		}
		return Seq(items...)
	case map[string]any:
		entries := make(map[string]Value, len(typed))
		for key, entry := range typed {
			entries[key] = fromAny(entry, depth+1)
		}
		return Map(entries)
	default:
		return String(fmt.Sprintf("%v", typed))
	}
}

// Record is one row: field name to value. Field names keep the casing the
// upstream writer used; callers normalize when comparing.
type Record map[string]Value

// Decode parses a JSON object into a Record.
func Decode(data []byte) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := make(Record, len(raw))
	for key, value := range raw {
		rec[key] = FromAny(value)
	}
	return rec, nil
}

// FromMap builds a Record from a loosely typed map, mostly for tests and
// fixtures.
func FromMap(raw map[string]any) Record {
	rec := make(Record, len(raw))
	for key, value := range raw {
		rec[key] = FromAny(value)
	}
	return rec
}

// Get looks a field up case-insensitively; exact casing wins when both exist.
func (r Record) Get(key string) (Value, bool) {
	if v, ok := r[key]; ok {
		return v, true
	}
	folded := strings.ToLower(key)
	for k, v := range r {
		if strings.ToLower(k) == folded {
			return v, true
		}
	}
	return Value{}, false
}

// Text returns the trimmed string coercion of a field, or "" when the field
// is absent or null.
func (r Record) Text(key string) string {
	v, ok := r.Get(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

// ID returns the record's opaque identifier.
func (r Record) ID() string {
	return r.Text("id")
}

// Keys returns the record's field names sorted for deterministic iteration.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r))
	for key, value := range r {
		out[key] = value.any()
	}
	return json.Marshal(out)
}
