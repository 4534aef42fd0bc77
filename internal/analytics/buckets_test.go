package analytics

import (
	"reflect"
	"testing"

	"solardesk/api/internal/record"
)

var approvalDateFields = []string{"order_date", "created_at"}

func TestBucketByMonth(t *testing.T) {
	records := []record.Record{
		record.FromMap(map[string]any{"order_date": "2024-01-05"}),
		record.FromMap(map[string]any{"order_date": "2024-01-28"}),
		record.FromMap(map[string]any{"order_date": "2024-02-01"}),
		record.FromMap(map[string]any{"order_date": "garbage"}),
		record.FromMap(map[string]any{"remarks": "no date at all"}),
	}

	got := BucketByMonth(records, approvalDateFields)

	if got["2024-01"] != 2 {
		t.Errorf("expected 2 records in 2024-01, got %d", got["2024-01"])
	}
	if got["2024-02"] != 1 {
		t.Errorf("expected 1 record in 2024-02, got %d", got["2024-02"])
	}

	total := 0
	for _, n := range got {
		total += n
	}
	if total != len(records)-2 {
		t.Errorf("expected %d bucketed records, got %d", len(records)-2, total)
	}
}

func TestBucketByMonthFieldPriority(t *testing.T) {
	// order_date wins over created_at when both are present.
	records := []record.Record{
		record.FromMap(map[string]any{"order_date": "2024-03-10", "created_at": "2023-01-01"}),
		record.FromMap(map[string]any{"created_at": "2023-06-15"}),
	}

	got := BucketByMonth(records, approvalDateFields)
	want := map[string]int{"2024-03": 1, "2023-06": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BucketByMonth() = %v, want %v", got, want)
	}
}

func TestUnionKeysChronological(t *testing.T) {
	approvals := map[string]int{"2024-02": 3, "2023-12": 1}
	projects := map[string]int{"2024-01": 2, "2024-02": 5}

	got := UnionKeys(approvals, projects)
	want := []string{"2023-12", "2024-01", "2024-02"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnionKeys() = %v, want %v", got, want)
	}
}

func TestMonthLabel(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"2024-01", "Jan 2024"},
		{"2023-12", "Dec 2023"},
		{"garbage", "garbage"},
		{"2024-13", "2024-13"},
	}

	for _, tt := range tests {
		if got := MonthLabel(tt.key); got != tt.want {
			t.Errorf("MonthLabel(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
