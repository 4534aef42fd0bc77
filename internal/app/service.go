// Package app is the presentation layer: the Service holds the current
// approval/project state the dashboard renders, and the HTTPServer exposes it
// as JSON. The Service owns all cross-package orchestration so the packages
// below it stay independent.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"solardesk/api/internal/analytics"
	"solardesk/api/internal/export"
	"solardesk/api/internal/fields"
	"solardesk/api/internal/format"
	"solardesk/api/internal/notify"
	"solardesk/api/internal/record"
	"solardesk/api/internal/resolve"
	"solardesk/api/internal/search"
	"solardesk/api/internal/store"
)

// invoicesCollection records every generated invoice for later lookup.
const invoicesCollection = "invoices"

// dataStore is the slice of the record store the service consumes.
type dataStore interface {
	Select(ctx context.Context, collection string, f store.Filter) ([]record.Record, error)
	Count(ctx context.Context, collection string, f store.Filter) (int, error)
	Insert(ctx context.Context, collection string, rec record.Record) (string, error)
	Update(ctx context.Context, collection, id string, patch record.Record) error
	Ping(ctx context.Context) error
}

type projectSearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexProjects(projects []record.Record)
}

type invoiceRenderer interface {
	RenderInvoice(input export.InvoiceInput) (*export.Result, error)
}

type invoiceArchiver interface {
	StoreInvoice(ctx context.Context, filename string, data []byte) (string, error)
}

// Options wires the service. Feed, Search, Exporter and Archive may be nil;
// the matching features degrade instead of failing.
type Options struct {
	Store dataStore

	ApprovalsCollection    string
	ApprovalsAltCollection string
	ProjectsCollection     string
	ProjectPageSize        int

	// SyncEndpoint receives status changes via PATCH when set; otherwise the
	// store is updated directly.
	SyncEndpoint string

	Locale         string
	CurrencySymbol string

	Feed     *notify.Feed
	Search   projectSearcher
	Exporter invoiceRenderer
	Archive  invoiceArchiver

	HTTPClient *http.Client
}

type Service struct {
	store     dataStore
	resolver  *resolve.Resolver
	formatter *format.Formatter
	toaster   *notify.Toaster

	approvalsCollection    string
	approvalsAltCollection string
	projectsCollection     string
	pageSize               int
	syncEndpoint           string

	feed     *notify.Feed
	search   projectSearcher
	exporter invoiceRenderer
	archive  invoiceArchiver
	client   *http.Client

	// fetchToken orders concurrent refreshes; a completed fetch only lands
	// when no newer fetch finished first, so a slow stale response can never
	// overwrite fresher rows.
	fetchToken atomic.Uint64

	mu               sync.Mutex
	approvals        []record.Record
	approvalsSource  string // collection that actually served the last fetch
	approvalsApplied uint64
	approvalsFailed  bool
	projects         []record.Record
	projectsApplied  uint64
	projectsFailed   bool

	subs []*notify.Subscription
}

func NewService(opts Options) *Service {
	pageSize := opts.ProjectPageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{
		store:     opts.Store,
		resolver:  resolve.New(opts.Store, opts.ProjectsCollection),
		formatter: format.New(opts.Locale, opts.CurrencySymbol),
		toaster:   notify.NewToaster(50),

		approvalsCollection:    opts.ApprovalsCollection,
		approvalsAltCollection: opts.ApprovalsAltCollection,
		projectsCollection:     opts.ProjectsCollection,
		pageSize:               pageSize,
		syncEndpoint:           opts.SyncEndpoint,

		feed:            opts.Feed,
		search:          opts.Search,
		exporter:        opts.Exporter,
		archive:         opts.Archive,
		client:          client,
		approvalsSource: opts.ApprovalsCollection,
	}
}

// Start runs the initial fetches and, when a change feed is configured,
// subscribes to the collections that back the dashboard. Both approval
// spellings are watched because writes may land under either.
func (s *Service) Start(ctx context.Context) error {
	s.RefreshApprovals(ctx)
	s.RefreshProjects(ctx)

	if s.feed == nil {
		return nil
	}

	watched := []string{s.approvalsCollection, s.projectsCollection}
	if s.approvalsAltCollection != "" && s.approvalsAltCollection != s.approvalsCollection {
		watched = append(watched, s.approvalsAltCollection)
	}
	for _, collection := range watched {
		collection := collection
		sub, err := s.feed.Subscribe(ctx, collection, func(notify.Event) {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if collection == s.projectsCollection {
				s.RefreshProjects(refreshCtx)
			} else {
				s.RefreshApprovals(refreshCtx)
			}
		})
		if err != nil {
			return fmt.Errorf("watch %s: %w", collection, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Close releases the change-feed subscriptions. In-flight refreshes finish on
// their own; the token guard keeps them from landing out of order.
func (s *Service) Close() {
	for _, sub := range s.subs {
		_ = sub.Close()
	}
	s.subs = nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) HasFeed() bool {
	return s.feed != nil
}

func (s *Service) PingFeed(ctx context.Context) error {
	if s.feed == nil {
		return nil
	}
	return s.feed.Ping(ctx)
}

// RefreshApprovals re-fetches the approval set. Collection-not-found on the
// primary spelling retries the alternate; any other failure toasts once and
// leaves the previous rows in place.
func (s *Service) RefreshApprovals(ctx context.Context) {
	token := s.fetchToken.Add(1)

	records, source, err := s.fetchApprovals(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token < s.approvalsApplied {
		return // a newer fetch already landed
	}
	s.approvalsApplied = token

	if err != nil {
		log.Printf("app: load approvals: %v", err)
		if !s.approvalsFailed {
			s.toaster.Push(notify.SeverityError, "Could not load approvals", err.Error())
		}
		s.approvalsFailed = true
		return
	}
	s.approvals = records
	s.approvalsSource = source
	s.approvalsFailed = false
}

func (s *Service) fetchApprovals(ctx context.Context) ([]record.Record, string, error) {
	records, err := s.store.Select(ctx, s.approvalsCollection, store.Filter{})
	if err == nil {
		return records, s.approvalsCollection, nil
	}
	if !errors.Is(err, store.ErrCollectionNotFound) || s.approvalsAltCollection == "" {
		return nil, "", err
	}

	log.Printf("app: %s missing, retrying %s", s.approvalsCollection, s.approvalsAltCollection)
	records, altErr := s.store.Select(ctx, s.approvalsAltCollection, store.Filter{})
	if altErr != nil {
		return nil, "", altErr
	}
	return records, s.approvalsAltCollection, nil
}

// RefreshProjects re-fetches the full project set with count-then-range
// paging, because the backing store caps single responses.
func (s *Service) RefreshProjects(ctx context.Context) {
	token := s.fetchToken.Add(1)

	records, err := s.fetchProjects(ctx)

	s.mu.Lock()
	if token < s.projectsApplied {
		s.mu.Unlock()
		return
	}
	s.projectsApplied = token

	if err != nil {
		log.Printf("app: load projects: %v", err)
		if !s.projectsFailed {
			s.toaster.Push(notify.SeverityError, "Could not load projects", err.Error())
		}
		s.projectsFailed = true
		s.mu.Unlock()
		return
	}
	s.projects = records
	s.projectsFailed = false
	s.mu.Unlock()

	if s.search != nil {
		s.search.IndexProjects(records)
	}
}

func (s *Service) fetchProjects(ctx context.Context) ([]record.Record, error) {
	total, err := s.store.Count(ctx, s.projectsCollection, store.Filter{})
	if err != nil {
		return nil, err
	}

	records := make([]record.Record, 0, total)
	for offset := 0; offset < total; offset += s.pageSize {
		page, err := s.store.Select(ctx, s.projectsCollection, store.Filter{
			OrderBy: "id",
			Offset:  offset,
			Limit:   s.pageSize,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if len(page) < s.pageSize {
			break
		}
	}
	return records, nil
}

// Column is one dashboard table column. Dynamic columns were discovered from
// the current rows rather than declared up front.
type Column struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Dynamic bool   `json:"dynamic"`
}

// Row is one rendered approval row.
type Row struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Cells  map[string]string `json:"cells"`
}

// StatusCounts breaks the full approval set down by normalized status.
type StatusCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ApprovalsView is the GET /approvals payload.
type ApprovalsView struct {
	Columns []Column     `json:"columns"`
	Rows    []Row        `json:"rows"`
	Counts  StatusCounts `json:"counts"`
	Source  string       `json:"source"`
}

// fixedColumns are always present; dynamic discovery adds whatever else the
// current rows carry.
var fixedColumns = []Column{
	{Key: "customer_name", Label: "Customer Name"},
	{Key: "project_name", Label: "Project Name"},
	{Key: "order_date", Label: "Order Date"},
	{Key: "capacity", Label: "Capacity"},
	{Key: "location", Label: "Location"},
	{Key: "power_bill_number", Label: "Power Bill Number"},
	{Key: "project_cost", Label: "Project Cost"},
	{Key: "site_visit_status", Label: "Site Visit Status"},
	{Key: "payment_amount", Label: "Payment Amount"},
	{Key: "approval_status", Label: "Approval Status"},
}

// fieldSynonyms map a fixed column to the alternate keys imports have used.
var fieldSynonyms = map[string][]string{
	"capacity":          {"capacity", "capacity_kw"},
	"site_visit_status": {"site_visit_status", "site_visit"},
}

// Approvals renders the dashboard table. statusFilter is all|pending|
// approved|rejected, case-insensitive; missing status counts as pending.
// Counts always cover the full set so the tiles stay stable while filtering.
func (s *Service) Approvals(ctx context.Context, statusFilter string) (ApprovalsView, error) {
	if s.feed == nil {
		// No change feed to keep the cache warm, so fetch per request.
		s.RefreshApprovals(ctx)
	}

	s.mu.Lock()
	approvals := s.approvals
	source := s.approvalsSource
	s.mu.Unlock()

	filter := strings.ToLower(strings.TrimSpace(statusFilter))
	if filter == "" {
		filter = "all"
	}
	switch filter {
	case "all", "pending", "approved", "rejected":
	default:
		return ApprovalsView{}, errValidation("status must be all, pending, approved or rejected")
	}

	columns := append([]Column(nil), fixedColumns...)
	for _, desc := range fields.Discover(approvals) {
		columns = append(columns, Column{Key: desc.Key, Label: desc.Label, Dynamic: true})
	}

	counts := StatusCounts{Total: len(approvals)}
	rows := make([]Row, 0, len(approvals))
	for _, approval := range approvals {
		status := normalizeStatus(approval)
		switch status {
		case "approved":
			counts.Approved++
		case "rejected":
			counts.Rejected++
		default:
			counts.Pending++
		}
		if filter != "all" && status != filter {
			continue
		}
		rows = append(rows, s.renderRow(approval, columns, status))
	}

	return ApprovalsView{Columns: columns, Rows: rows, Counts: counts, Source: source}, nil
}

func (s *Service) renderRow(approval record.Record, columns []Column, status string) Row {
	cells := make(map[string]string, len(columns))
	for _, col := range columns {
		keys := fieldSynonyms[col.Key]
		if keys == nil {
			keys = []string{col.Key}
		}
		cell := format.Placeholder
		for _, key := range keys {
			v, ok := approval.Get(key)
			if !ok || !v.Meaningful() {
				continue
			}
			cell = s.formatter.Format(key, v)
			break
		}
		cells[col.Key] = cell
	}
	return Row{ID: approval.ID(), Status: status, Cells: cells}
}

func normalizeStatus(approval record.Record) string {
	status := strings.ToLower(approval.Text("approval_status"))
	if status == "" {
		return "pending"
	}
	return status
}

// Summary aggregates the tiles above the table: status counts plus capacity
// and cost sums over the full approval set.
type Summary struct {
	Counts      StatusCounts `json:"counts"`
	CapacityKW  float64      `json:"capacityKw"`
	ProjectCost float64      `json:"projectCost"`
	CostDisplay string       `json:"costDisplay"`
}

func (s *Service) Summary(ctx context.Context) Summary {
	if s.feed == nil {
		s.RefreshApprovals(ctx)
	}

	s.mu.Lock()
	approvals := s.approvals
	s.mu.Unlock()

	out := Summary{Counts: StatusCounts{Total: len(approvals)}}
	for _, approval := range approvals {
		switch normalizeStatus(approval) {
		case "approved":
			out.Counts.Approved++
		case "rejected":
			out.Counts.Rejected++
		default:
			out.Counts.Pending++
		}
		out.CapacityKW += numberField(approval, "capacity", "capacity_kw")
		out.ProjectCost += numberField(approval, "project_cost")
	}
	out.CostDisplay = s.formatter.Format("project_cost", record.Number(out.ProjectCost))
	return out
}

// numberField reads the first parseable numeric among the given keys. Imports
// store numbers both as JSON numbers and as strings.
func numberField(rec record.Record, keys ...string) float64 {
	for _, key := range keys {
		v, ok := rec.Get(key)
		if !ok || !v.Meaningful() {
			continue
		}
		if v.Kind() == record.KindNumber {
			return v.Number()
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64); err == nil {
			return n
		}
	}
	return 0
}

// validStatuses are the values a status mutation may set.
var validStatuses = map[string]struct{}{
	"pending":  {},
	"approved": {},
	"rejected": {},
}

// UpdateApprovalStatus sets an approval's status through the configured sync
// endpoint, or directly in the store when none is configured, then re-fetches.
// There is no optimistic local patch; the table changes when the re-fetch
// lands.
func (s *Service) UpdateApprovalStatus(ctx context.Context, id, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := validStatuses[status]; !ok {
		return errValidation("status must be pending, approved or rejected")
	}
	if strings.TrimSpace(id) == "" {
		return errValidation("approval id is required")
	}

	var err error
	if s.syncEndpoint != "" {
		err = s.patchSyncEndpoint(ctx, id, status)
	} else {
		s.mu.Lock()
		source := s.approvalsSource
		s.mu.Unlock()
		err = s.store.Update(ctx, source, id, record.Record{
			"approval_status": record.String(status),
		})
		if errors.Is(err, store.ErrNotFound) {
			err = errNotFound("approval not found")
		}
	}
	if err != nil {
		s.toaster.Push(notify.SeverityError, "Status update failed", err.Error())
		return err
	}

	s.RefreshApprovals(ctx)
	s.toaster.Push(notify.SeveritySuccess, "Status updated", fmt.Sprintf("Approval marked %s", status))
	return nil
}

func (s *Service) patchSyncEndpoint(ctx context.Context, id, status string) error {
	payload, err := json.Marshal(map[string]string{
		"id":              id,
		"approval_status": status,
	})
	if err != nil {
		return fmt.Errorf("encode status patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.syncEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build status patch: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errUpstream(fmt.Sprintf("sync endpoint unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = resp.Status
		}
		return errUpstream(reason)
	}
	return nil
}

// OpenProject resolves where the UI should navigate for an approval. A failed
// resolution with a usable identity still yields a fallback target; only an
// approval with no identity at all errors, surfaced as a toast.
func (s *Service) OpenProject(ctx context.Context, approvalID string) (resolve.Target, error) {
	approval, err := s.findApproval(ctx, approvalID)
	if err != nil {
		return resolve.Target{}, err
	}

	s.mu.Lock()
	projects := s.projects
	s.mu.Unlock()

	target, err := s.resolver.Resolve(ctx, approval, projects)
	if err != nil {
		if errors.Is(err, resolve.ErrNoIdentity) {
			s.toaster.Push(notify.SeverityError, "Project not found", "The approval has no identifying fields")
			return resolve.Target{}, errNotFound("project not found")
		}
		return resolve.Target{}, err
	}
	return target, nil
}

func (s *Service) findApproval(ctx context.Context, id string) (record.Record, error) {
	s.mu.Lock()
	approvals := s.approvals
	source := s.approvalsSource
	s.mu.Unlock()

	for _, approval := range approvals {
		if approval.ID() == id {
			return approval, nil
		}
	}

	rows, err := s.store.Select(ctx, source, store.Filter{
		Where: []store.Clause{store.Eq("id", id)},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("load approval %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, errNotFound("approval not found")
	}
	return rows[0], nil
}

// approvalDateFields and projectDateFields order the candidate date fields
// for monthly bucketing; the first present field wins per record.
var (
	approvalDateFields = []string{"order_date", "created_at"}
	projectDateFields  = []string{"installation_date", "order_date", "created_at"}
)

// MonthPoint is one month in the side-by-side series.
type MonthPoint struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Approvals int    `json:"approvals"`
	Projects  int    `json:"projects"`
}

// MonthlySeries buckets approvals and projects by month and merges the keys
// chronologically so the chart renders both lines on one axis.
func (s *Service) MonthlySeries(ctx context.Context) []MonthPoint {
	if s.feed == nil {
		s.RefreshApprovals(ctx)
		s.RefreshProjects(ctx)
	}

	s.mu.Lock()
	approvals := s.approvals
	projects := s.projects
	s.mu.Unlock()

	approvalBuckets := analytics.BucketByMonth(approvals, approvalDateFields)
	projectBuckets := analytics.BucketByMonth(projects, projectDateFields)

	keys := analytics.UnionKeys(approvalBuckets, projectBuckets)
	points := make([]MonthPoint, 0, len(keys))
	for _, key := range keys {
		points = append(points, MonthPoint{
			Key:       key,
			Label:     analytics.MonthLabel(key),
			Approvals: approvalBuckets[key],
			Projects:  projectBuckets[key],
		})
	}
	return points
}

// SearchProjects delegates to the search facade.
func (s *Service) SearchProjects(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// InvoicePDF builds and renders a tax invoice, archives the PDF when an
// archive is configured, and records the invoice for later lookup. Archive
// and record failures are logged, not surfaced; the caller still gets its
// PDF.
func (s *Service) InvoicePDF(ctx context.Context, input export.InvoiceInput) (*export.Result, error) {
	if s.exporter == nil {
		return nil, &DomainError{Status: http.StatusServiceUnavailable, Code: "EXPORT_UNAVAILABLE", Message: "Invoice export is not configured"}
	}

	result, err := s.exporter.RenderInvoice(input)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, &DomainError{Status: http.StatusServiceUnavailable, Code: "EXPORT_UNAVAILABLE", Message: err.Error()}
		}
		return nil, errValidation(err.Error())
	}

	archiveKey := ""
	if s.archive != nil {
		key, archiveErr := s.archive.StoreInvoice(ctx, result.Filename, result.Data)
		if archiveErr != nil {
			log.Printf("app: archive invoice %s: %v", input.InvoiceNumber, archiveErr)
		} else {
			archiveKey = key
		}
	}

	invoiceRow := record.FromMap(map[string]any{
		"invoice_number": input.InvoiceNumber,
		"customer_name":  input.CustomerName,
		"invoice_date":   input.InvoiceDate,
		"archive_key":    archiveKey,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if _, insertErr := s.store.Insert(ctx, invoicesCollection, invoiceRow); insertErr != nil {
		log.Printf("app: record invoice %s: %v", input.InvoiceNumber, insertErr)
	}

	return result, nil
}

// Notifications drains the toast buffer.
func (s *Service) Notifications() []notify.Toast {
	return s.toaster.Drain()
}
