package export

import (
	"strings"
	"testing"
)

func TestBuildInvoiceMath(t *testing.T) {
	input := InvoiceInput{
		InvoiceNumber: "SD/2024/017",
		InvoiceDate:   "15 Mar 2024",
		CustomerName:  "Solar X",
		GSTRate:       12,
		Items: []InvoiceItem{
			{Description: "540W mono panel", HSNCode: "8541", Quantity: 10, Unit: "nos", Rate: 11500},
			{Description: "Installation", Quantity: 1, Unit: "job", Rate: 15000},
		},
	}

	inv, err := BuildInvoice(input)
	if err != nil {
		t.Fatalf("BuildInvoice failed: %v", err)
	}

	if inv.Subtotal != 130000 {
		t.Errorf("expected subtotal 130000, got %v", inv.Subtotal)
	}
	// 12% split evenly: 7800 each side.
	if inv.CGST != 7800 || inv.SGST != 7800 {
		t.Errorf("expected CGST/SGST 7800 each, got %v/%v", inv.CGST, inv.SGST)
	}
	if inv.Total != 145600 {
		t.Errorf("expected total 145600, got %v", inv.Total)
	}
	if inv.Lines[0].Amount != 115000 {
		t.Errorf("expected first line amount 115000, got %v", inv.Lines[0].Amount)
	}
}

func TestBuildInvoiceRounding(t *testing.T) {
	input := InvoiceInput{
		InvoiceNumber: "SD/2024/018",
		CustomerName:  "Solar X",
		GSTRate:       18,
		Items: []InvoiceItem{
			{Description: "Cabling", Quantity: 3, Unit: "m", Rate: 33.335},
		},
	}

	inv, err := BuildInvoice(input)
	if err != nil {
		t.Fatalf("BuildInvoice failed: %v", err)
	}
	if inv.Lines[0].Amount != 100.01 {
		t.Errorf("expected paise rounding to 100.01, got %v", inv.Lines[0].Amount)
	}
}

func TestBuildInvoiceValidation(t *testing.T) {
	tests := []struct {
		name  string
		input InvoiceInput
	}{
		{"missing number", InvoiceInput{CustomerName: "X", Items: []InvoiceItem{{Description: "d", Quantity: 1}}}},
		{"missing customer", InvoiceInput{InvoiceNumber: "1", Items: []InvoiceItem{{Description: "d", Quantity: 1}}}},
		{"no items", InvoiceInput{InvoiceNumber: "1", CustomerName: "X"}},
		{"zero quantity", InvoiceInput{InvoiceNumber: "1", CustomerName: "X", Items: []InvoiceItem{{Description: "d"}}}},
		{"negative rate", InvoiceInput{InvoiceNumber: "1", CustomerName: "X", Items: []InvoiceItem{{Description: "d", Quantity: 1, Rate: -5}}}},
		{"bad gst rate", InvoiceInput{InvoiceNumber: "1", CustomerName: "X", GSTRate: 140, Items: []InvoiceItem{{Description: "d", Quantity: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildInvoice(tt.input); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestRenderInvoiceHTML(t *testing.T) {
	inv, err := BuildInvoice(InvoiceInput{
		InvoiceNumber: "SD/2024/019",
		CustomerName:  "Chitoor Rooftop <Phase 2>",
		GSTRate:       12,
		Items: []InvoiceItem{
			{Description: "Net meter", HSNCode: "9028", Quantity: 1, Unit: "nos", Rate: 4500},
		},
	})
	if err != nil {
		t.Fatalf("BuildInvoice failed: %v", err)
	}

	html, err := RenderInvoiceHTML(inv)
	if err != nil {
		t.Fatalf("RenderInvoiceHTML failed: %v", err)
	}

	if !strings.Contains(html, "SD/2024/019") {
		t.Error("expected invoice number in output")
	}
	if !strings.Contains(html, "₹4500.00") {
		t.Errorf("expected formatted amount in output")
	}
	// html/template must escape the customer name.
	if strings.Contains(html, "<Phase 2>") {
		t.Error("expected angle brackets to be escaped")
	}
	if !strings.Contains(html, "CGST") || !strings.Contains(html, "SGST") {
		t.Error("expected GST split rows")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"invoice-SD/2024/017", "invoice-SD-2024-017"},
		{"weird !! name", "weird--name"},
		{"", "invoice"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b&c")
	if got != "a%20b%26c" {
		t.Errorf("percentEncodeForDataURL = %q", got)
	}

	// Multibyte characters encode per UTF-8 byte.
	if got := percentEncodeForDataURL("₹"); got != "%E2%82%B9" {
		t.Errorf("percentEncodeForDataURL(rupee) = %q", got)
	}
}
