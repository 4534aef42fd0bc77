package export

import (
	"fmt"
	"math"
	"strings"
)

// BuildInvoice validates the input and computes line amounts and the GST
// split. GST on intra-state supply is charged half as CGST and half as SGST.
func BuildInvoice(input InvoiceInput) (Invoice, error) {
	if strings.TrimSpace(input.InvoiceNumber) == "" {
		return Invoice{}, fmt.Errorf("invoice number is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return Invoice{}, fmt.Errorf("customer name is required")
	}
	if len(input.Items) == 0 {
		return Invoice{}, fmt.Errorf("invoice needs at least one item")
	}
	if input.GSTRate < 0 || input.GSTRate > 100 {
		return Invoice{}, fmt.Errorf("gst rate %v out of range", input.GSTRate)
	}

	inv := Invoice{
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		InvoiceDate:   strings.TrimSpace(input.InvoiceDate),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerGSTIN: strings.TrimSpace(input.CustomerGSTIN),
		Address:       strings.TrimSpace(input.Address),
		PlaceOfSupply: strings.TrimSpace(input.PlaceOfSupply),
		GSTRate:       input.GSTRate,
	}

	for i, item := range input.Items {
		if strings.TrimSpace(item.Description) == "" {
			return Invoice{}, fmt.Errorf("item %d: description is required", i+1)
		}
		if item.Quantity <= 0 {
			return Invoice{}, fmt.Errorf("item %d: quantity must be positive", i+1)
		}
		if item.Rate < 0 {
			return Invoice{}, fmt.Errorf("item %d: rate must not be negative", i+1)
		}
		line := InvoiceLine{
			InvoiceItem: item,
			Amount:      roundPaise(item.Quantity * item.Rate),
		}
		inv.Lines = append(inv.Lines, line)
		inv.Subtotal += line.Amount
	}

	inv.Subtotal = roundPaise(inv.Subtotal)
	gst := inv.Subtotal * input.GSTRate / 100
	inv.CGST = roundPaise(gst / 2)
	inv.SGST = roundPaise(gst / 2)
	inv.Total = roundPaise(inv.Subtotal + inv.CGST + inv.SGST)
	return inv, nil
}

func roundPaise(v float64) float64 {
	return math.Round(v*100) / 100
}
