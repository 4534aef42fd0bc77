// Package export builds GST tax invoices and renders them to PDF with
// headless Chrome.
package export

import "errors"

// ErrPDFDependencyMissing means no Chromium binary is installed on the host.
var ErrPDFDependencyMissing = errors.New("pdf dependency missing")

// InvoiceInput is the payload the finance screen submits.
type InvoiceInput struct {
	InvoiceNumber string        `json:"invoiceNumber"`
	InvoiceDate   string        `json:"invoiceDate"`
	CustomerName  string        `json:"customerName"`
	CustomerGSTIN string        `json:"customerGstin"`
	Address       string        `json:"address"`
	PlaceOfSupply string        `json:"placeOfSupply"`
	GSTRate       float64       `json:"gstRate"` // percent, split evenly CGST/SGST
	Items         []InvoiceItem `json:"items"`
}

// InvoiceItem is one billed line before tax.
type InvoiceItem struct {
	Description string  `json:"description"`
	HSNCode     string  `json:"hsnCode"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Rate        float64 `json:"rate"`
}

// InvoiceLine is a computed line with its amount.
type InvoiceLine struct {
	InvoiceItem
	Amount float64
}

// Invoice is the fully computed document handed to the template.
type Invoice struct {
	InvoiceNumber string
	InvoiceDate   string
	CustomerName  string
	CustomerGSTIN string
	Address       string
	PlaceOfSupply string
	Lines         []InvoiceLine
	Subtotal      float64
	GSTRate       float64
	CGST          float64
	SGST          float64
	Total         float64
}

// Result is a rendered artifact ready to stream to the client.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}
