package export

import "fmt"

// Service turns invoice payloads into PDF artifacts.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// RenderInvoice computes the invoice and renders it to PDF.
func (s *Service) RenderInvoice(input InvoiceInput) (*Result, error) {
	inv, err := BuildInvoice(input)
	if err != nil {
		return nil, fmt.Errorf("build invoice: %w", err)
	}
	html, err := RenderInvoiceHTML(inv)
	if err != nil {
		return nil, fmt.Errorf("render invoice template: %w", err)
	}
	return renderPDF(html, inv.InvoiceNumber)
}
