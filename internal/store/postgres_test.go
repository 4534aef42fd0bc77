package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"solardesk/api/internal/record"
)

func TestWhereSQL(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		wantSQL  string
		wantArgs int
	}{
		{
			"empty filter",
			Filter{},
			"",
			0,
		},
		{
			"single equality on data field",
			Filter{Where: []Clause{Eq("service_number", "S1")}},
			" WHERE data->>$1 = $2",
			2,
		},
		{
			"id addressed as a column",
			Filter{Where: []Clause{Eq("id", "p1")}},
			" WHERE id = $1",
			1,
		},
		{
			"ilike clause",
			Filter{Where: []Clause{ILike("customer_name", "%solar%")}},
			" WHERE data->>$1 ILIKE $2",
			2,
		},
		{
			"or group",
			Filter{AnyOf: []Clause{Eq("service_number", "S1"), Eq("power_bill_number", "PB9")}},
			" WHERE (data->>$1 = $2 OR data->>$3 = $4)",
			4,
		},
		{
			"and plus or group",
			Filter{
				Where: []Clause{Eq("id", "p1")},
				AnyOf: []Clause{Eq("service_number", "S1"), ILike("customer_name", "%x%")},
			},
			" WHERE id = $1 AND (data->>$2 = $3 OR data->>$4 ILIKE $5)",
			5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []any
			got := whereSQL(tt.filter, &args)
			if got != tt.wantSQL {
				t.Errorf("whereSQL() = %q, want %q", got, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestOrderAndRangeSQL(t *testing.T) {
	var args []any
	f := Filter{OrderBy: "order_date", Desc: true, Offset: 1000, Limit: 500}

	order := orderSQL(f, &args)
	if order != " ORDER BY data->>$1 DESC" {
		t.Errorf("orderSQL() = %q", order)
	}
	rng := rangeSQL(f, &args)
	if rng != " LIMIT $2 OFFSET $3" {
		t.Errorf("rangeSQL() = %q", rng)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d", len(args))
	}
}

func TestOrderSQLDefaults(t *testing.T) {
	var args []any
	if got := orderSQL(Filter{}, &args); got != " ORDER BY created_at DESC" {
		t.Errorf("default order = %q", got)
	}
	if got := orderSQL(Filter{OrderBy: "created_at"}, &args); got != " ORDER BY created_at ASC" {
		t.Errorf("meta column order = %q", got)
	}
	if len(args) != 0 {
		t.Errorf("meta column ordering must not add args, got %d", len(args))
	}
}

func TestTableNameValidation(t *testing.T) {
	valid := []string{"chitoor_approvals", "projects", "invoices", "_x"}
	for _, name := range valid {
		if _, err := tableName(name); err != nil {
			t.Errorf("tableName(%q) unexpected error: %v", name, err)
		}
	}

	invalid := []string{"", "Projects", "drop table", `a"b`, "1abc", "a;b"}
	for _, name := range invalid {
		if _, err := tableName(name); err == nil {
			t.Errorf("tableName(%q) expected error", name)
		}
	}
}

func TestStripMetadata(t *testing.T) {
	rec := record.FromMap(map[string]any{
		"id":         "a1",
		"created_at": "2024-01-01",
		"updated_at": "2024-01-02",
		"remarks":    "keep",
	})

	got := stripMetadata(rec)
	if len(got) != 1 {
		t.Fatalf("expected 1 field, got %d", len(got))
	}
	if got.Text("remarks") != "keep" {
		t.Errorf("expected remarks to survive")
	}
}

func TestMapTableError(t *testing.T) {
	undefined := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	err := mapTableError("chitoor_approvals", undefined)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "chitoor_approvals") {
		t.Errorf("expected collection name in error, got %v", err)
	}

	other := errors.New("connection refused")
	if errors.Is(mapTableError("projects", other), ErrCollectionNotFound) {
		t.Errorf("plain errors must not map to ErrCollectionNotFound")
	}
}
