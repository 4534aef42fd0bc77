package search

import (
	"context"
	"fmt"
	"strings"

	"solardesk/api/internal/record"
	"solardesk/api/internal/store"
)

// recordStore is the slice of the record store the fallback needs.
type recordStore interface {
	Select(ctx context.Context, collection string, f store.Filter) ([]record.Record, error)
	Count(ctx context.Context, collection string, f store.Filter) (int, error)
}

// StoreSearch answers project searches with ILIKE scans against the record
// store. Slower than Meilisearch but always available.
type StoreSearch struct {
	store      recordStore
	collection string
}

func NewStoreSearch(st recordStore, collection string) *StoreSearch {
	return &StoreSearch{store: st, collection: collection}
}

func (s *StoreSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	pattern := "%" + strings.ReplaceAll(strings.TrimSpace(q.Text), "%", "") + "%"
	filter := store.Filter{
		AnyOf: []store.Clause{
			store.ILike("customer_name", pattern),
			store.ILike("project_name", pattern),
			store.ILike("service_number", pattern),
			store.ILike("power_bill_number", pattern),
		},
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if filter.Limit == 0 {
		filter.Limit = 20
	}

	total, err := s.store.Count(ctx, s.collection, store.Filter{AnyOf: filter.AnyOf})
	if err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	rows, err := s.store.Select(ctx, s.collection, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("search projects: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			ID:            row.ID(),
			CustomerName:  row.Text("customer_name"),
			ProjectName:   row.Text("project_name"),
			ServiceNumber: row.Text("service_number"),
			Location:      row.Text("location"),
			Status:        row.Text("status"),
		})
	}
	return results, total, nil
}
