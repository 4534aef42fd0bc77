// Package search finds projects by name, service number or power bill
// number. Meilisearch serves queries when it is up; otherwise the record
// store answers with ILIKE scans.
package search

// Query is one project search.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Result is one matching project, flattened to the fields the picker UI
// renders.
type Result struct {
	ID            string `json:"id"`
	CustomerName  string `json:"customerName"`
	ProjectName   string `json:"projectName"`
	ServiceNumber string `json:"serviceNumber"`
	Location      string `json:"location"`
	Status        string `json:"status"`
}

// Response is the search envelope returned to the UI.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
