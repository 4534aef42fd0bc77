package record

import (
	"encoding/json"
	"testing"
)

func TestMeaningful(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"empty string", String(""), false},
		{"whitespace string", String("   \t"), false},
		{"string", String("ok"), true},
		{"zero number", Number(0), true},
		{"false bool", Bool(false), true},
		{"empty seq", Seq(), false},
		{"seq of empties", Seq(String(" "), Null()), false},
		{"seq with one value", Seq(String(" "), String("x")), true},
		{"empty map", Map(map[string]Value{}), false},
		{"map of empties", Map(map[string]Value{"a": Null(), "b": String("")}), false},
		{"map with one value", Map(map[string]Value{"a": Null(), "b": Number(1)}), true},
		{"nested", Seq(Map(map[string]Value{"a": Seq(String("deep"))})), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Meaningful(); got != tt.want {
				t.Errorf("Meaningful() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextCoercion(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"whole number drops decimals", Number(123), "123"},
		{"fractional number keeps them", Number(12.5), "12.5"},
		{"bool", Bool(true), "true"},
		{"null", Null(), ""},
		{"string verbatim", String(" S1 "), " S1 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromAnySelfReference(t *testing.T) {
	// A map that contains itself must not blow the stack.
	loop := map[string]any{}
	loop["self"] = loop

	v := FromAny(loop)
	if v.Kind() != KindString && v.Kind() != KindMap {
		t.Fatalf("unexpected kind %v", v.Kind())
	}
	// Either way the value must serialize without recursing forever.
	_ = v.Text()
}

func TestDecodeRoundTrip(t *testing.T) {
	raw := []byte(`{"id":"a1","capacity":5.5,"tags":["x",""],"meta":{"note":"ok"},"gone":null}`)
	rec, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if rec.ID() != "a1" {
		t.Errorf("expected id a1, got %q", rec.ID())
	}
	if v, _ := rec.Get("capacity"); v.Number() != 5.5 {
		t.Errorf("expected capacity 5.5, got %v", v.Number())
	}
	if v, _ := rec.Get("gone"); !v.IsNull() {
		t.Errorf("expected null for gone")
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	again, err := Decode(out)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if again.Text("meta") == "" {
		t.Errorf("expected meta to survive the round trip")
	}
}

func TestGetCaseInsensitive(t *testing.T) {
	rec := FromMap(map[string]any{"Service_Number": "S1"})
	if got := rec.Text("service_number"); got != "S1" {
		t.Errorf("expected case-insensitive lookup, got %q", got)
	}
}
