package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"solardesk/api/internal/record"
	"solardesk/api/internal/store"
)

func newTestHandler(st dataStore) http.Handler {
	return NewHTTPServer(newTestService(st), "*").Handler()
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestReadyEndpointDatabaseDown(t *testing.T) {
	st := &fakeStore{
		pingFn: func(ctx context.Context) error {
			return context.DeadlineExceeded
		},
	}
	handler := newTestHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"not_ready"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestApprovalsEndpoint(t *testing.T) {
	st := &fakeStore{
		selectFn: func(ctx context.Context, collection string, f store.Filter) ([]record.Record, error) {
			if collection == "chitoor_approvals" {
				return []record.Record{
					record.FromMap(map[string]any{"id": "a1", "approval_status": "approved", "customer_name": "Ravi"}),
					record.FromMap(map[string]any{"id": "a2"}),
				}, nil
			}
			return nil, nil
		},
	}
	handler := newTestHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/chitoor/approvals?status=approved", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view ApprovalsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(view.Rows) != 1 || view.Rows[0].ID != "a1" {
		t.Errorf("unexpected rows: %+v", view.Rows)
	}
	if view.Counts.Total != 2 || view.Counts.Pending != 1 {
		t.Errorf("unexpected counts: %+v", view.Counts)
	}
}

func TestApprovalsEndpointBadFilter(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/chitoor/approvals?status=nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	var gotID string
	st := &fakeStore{
		updateFn: func(ctx context.Context, collection, id string, patch record.Record) error {
			gotID = id
			return nil
		},
	}
	handler := newTestHandler(st)

	req := httptest.NewRequest(http.MethodPost, "/api/chitoor/approvals/a9/status", strings.NewReader(`{"status":"approved"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "a9" {
		t.Errorf("expected update of a9, got %q", gotID)
	}
}

func TestStatusEndpointRequiresPost(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/chitoor/approvals/a9/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestOpenEndpoint(t *testing.T) {
	st := &fakeStore{
		selectFn: func(ctx context.Context, collection string, f store.Filter) ([]record.Record, error) {
			switch collection {
			case "chitoor_approvals":
				return []record.Record{
					record.FromMap(map[string]any{"id": "a1", "project_id": "p7"}),
				}, nil
			case "chitoor_projects":
				if len(f.Where) == 1 && f.Where[0].Value == "p7" {
					return []record.Record{record.FromMap(map[string]any{"id": "p7"})}, nil
				}
			}
			return nil, nil
		},
	}
	handler := newTestHandler(st)

	req := httptest.NewRequest(http.MethodPost, "/api/chitoor/approvals/a1/open", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"/chitoor/projects/p7"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestMonthlyEndpoint(t *testing.T) {
	st := &fakeStore{
		selectFn: func(ctx context.Context, collection string, f store.Filter) ([]record.Record, error) {
			if collection == "chitoor_approvals" {
				return []record.Record{
					record.FromMap(map[string]any{"id": "a1", "order_date": "2024-03-05"}),
				}, nil
			}
			return nil, nil
		},
	}
	handler := newTestHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/chitoor/analytics/monthly", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Mar 2024"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestNotificationsEndpointDrains(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.toaster.Push("error", "Could not load approvals", "boom")
	handler := NewHTTPServer(svc, "*").Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "Could not load approvals") {
		t.Errorf("expected buffered toast, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	if !strings.Contains(rec.Body.String(), `"notifications":[]`) {
		t.Errorf("expected drained buffer, got %s", rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCORSHeadersSet(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/chitoor/approvals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header")
	}
}
