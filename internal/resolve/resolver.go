// Package resolve links a district approval record to its project record.
// The two collections are written by different upstream processes and share
// no reliable foreign key, so the link is re-derived at read time through a
// cascade of matchers: cheap authoritative lookups first, text heuristics
// last, and a fallback target that always exists.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"solardesk/api/internal/record"
	"solardesk/api/internal/store"
)

// Store is the read capability the resolver needs.
type Store interface {
	Select(ctx context.Context, collection string, f store.Filter) ([]record.Record, error)
}

// Target is where the UI should navigate. State carries the raw approval
// record on fallback targets so the destination can still render something.
type Target struct {
	Path  string        `json:"path"`
	State record.Record `json:"state,omitempty"`
}

// ErrNoIdentity means the approval carried nothing to navigate by, not even
// its own id.
var ErrNoIdentity = errors.New("approval has no identifying fields")

// explicitIDFields is the precedence order for direct project references on
// an approval record.
var explicitIDFields = []string{"project_id", "chitoor_project_id", "linked_project_id"}

// bankingRefFields are alternate spellings under which imports have stored
// the service number.
var bankingRefFields = []string{"bank_service_number", "banking_service_number"}

type Resolver struct {
	store              Store
	projectsCollection string
}

func New(st Store, projectsCollection string) *Resolver {
	return &Resolver{store: st, projectsCollection: projectsCollection}
}

type strategy struct {
	name string
	run  func(context.Context) (string, bool)
}

// Resolve runs the matching cascade and returns the first hit. Each stage is
// awaited fully before the next so a heuristic stage can never preempt an
// authoritative one; stage errors are logged and swallowed because every
// stage is best-effort.
func (r *Resolver) Resolve(ctx context.Context, approval record.Record, knownProjects []record.Record) (Target, error) {
	strategies := []strategy{
		{"explicit-id", func(ctx context.Context) (string, bool) {
			return r.byExplicitID(ctx, approval)
		}},
		{"uuid", func(ctx context.Context) (string, bool) {
			return r.byUUID(ctx, approval)
		}},
		{"local-cache", func(ctx context.Context) (string, bool) {
			return matchLocal(approval, knownProjects)
		}},
		{"remote-or", func(ctx context.Context) (string, bool) {
			return r.byRemoteQuery(ctx, approval)
		}},
	}

	for _, st := range strategies {
		if id, ok := st.run(ctx); ok {
			return projectTarget(id), nil
		}
	}

	return r.fallbackTarget(approval)
}

func (r *Resolver) byExplicitID(ctx context.Context, approval record.Record) (string, bool) {
	for _, field := range explicitIDFields {
		id := approval.Text(field)
		if id == "" {
			continue
		}
		rows, err := r.store.Select(ctx, r.projectsCollection, store.Filter{
			Where: []store.Clause{store.Eq("id", id)},
			Limit: 1,
		})
		if err != nil {
			log.Printf("resolve: explicit-id lookup %s=%s: %v", field, id, err)
			continue
		}
		if len(rows) == 1 {
			return rows[0].ID(), true
		}
	}
	return "", false
}

func (r *Resolver) byUUID(ctx context.Context, approval record.Record) (string, bool) {
	uuid := approval.Text("project_uuid")
	if uuid == "" {
		return "", false
	}
	rows, err := r.store.Select(ctx, r.projectsCollection, store.Filter{
		Where: []store.Clause{store.Eq("project_uuid", uuid)},
		Limit: 1,
	})
	if err != nil {
		log.Printf("resolve: uuid lookup %s: %v", uuid, err)
		return "", false
	}
	if len(rows) > 0 {
		return rows[0].ID(), true
	}
	return "", false
}

// matchLocal scans the already fetched project cache. First project in
// iteration order wins; with multiple name-substring candidates that order
// is whatever the last fetch returned.
func matchLocal(approval record.Record, knownProjects []record.Record) (string, bool) {
	serviceNumber := approval.Text("service_number")
	powerBill := approval.Text("power_bill_number")
	uuid := approval.Text("project_uuid")
	name := strings.ToLower(approval.Text("project_name"))

	for _, project := range knownProjects {
		switch {
		case serviceNumber != "" && project.Text("service_number") == serviceNumber:
			return project.ID(), true
		case powerBill != "" && project.Text("power_bill_number") == powerBill:
			return project.ID(), true
		case uuid != "" && project.Text("project_uuid") == uuid:
			return project.ID(), true
		case name != "" && nameMatches(project, name):
			return project.ID(), true
		}
	}
	return "", false
}

func nameMatches(project record.Record, foldedName string) bool {
	for _, field := range []string{"customer_name", "project_name", "site_name"} {
		candidate := strings.ToLower(project.Text(field))
		if candidate != "" && strings.Contains(candidate, foldedName) {
			return true
		}
	}
	return false
}

// byRemoteQuery builds one OR-query out of every identifying attribute the
// approval carries and takes the first row.
func (r *Resolver) byRemoteQuery(ctx context.Context, approval record.Record) (string, bool) {
	var anyOf []store.Clause

	if sn := approval.Text("service_number"); sn != "" {
		anyOf = append(anyOf, store.Eq("service_number", sn))
	}
	if pb := approval.Text("power_bill_number"); pb != "" {
		anyOf = append(anyOf, store.Eq("power_bill_number", pb))
	}
	for _, field := range bankingRefFields {
		if ref := approval.Text(field); ref != "" {
			anyOf = append(anyOf, store.Eq("service_number", ref))
		}
	}
	if uuid := approval.Text("project_uuid"); uuid != "" {
		anyOf = append(anyOf, store.Eq("project_uuid", uuid))
	}
	if name := sanitizePattern(approval.Text("project_name")); name != "" {
		anyOf = append(anyOf, store.ILike("customer_name", "%"+name+"%"))
	}

	if len(anyOf) == 0 {
		return "", false
	}

	rows, err := r.store.Select(ctx, r.projectsCollection, store.Filter{AnyOf: anyOf, Limit: 1})
	if err != nil {
		log.Printf("resolve: remote query: %v", err)
		return "", false
	}
	if len(rows) > 0 {
		return rows[0].ID(), true
	}
	return "", false
}

// sanitizePattern strips the characters that would change the meaning of an
// ILIKE pattern or an IN-style list.
func sanitizePattern(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// fallbackTarget synthesizes a navigation target when no stage matched. It
// carries the raw approval so the destination view can render from it.
func (r *Resolver) fallbackTarget(approval record.Record) (Target, error) {
	for _, field := range explicitIDFields {
		if id := approval.Text(field); id != "" {
			t := projectTarget(id)
			t.State = approval
			return t, nil
		}
	}
	if uuid := approval.Text("project_uuid"); uuid != "" {
		t := projectTarget(uuid)
		t.State = approval
		return t, nil
	}
	if approvalID := approval.ID(); approvalID != "" {
		t := projectTarget("approval-" + approvalID)
		t.State = approval
		return t, nil
	}
	return Target{}, ErrNoIdentity
}

func projectTarget(id string) Target {
	return Target{Path: fmt.Sprintf("/chitoor/projects/%s", id)}
}
