package export

import (
	"bytes"
	"fmt"
	"html/template"
)

var invoiceTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"money": func(v float64) string {
			return fmt.Sprintf("₹%.2f", v)
		},
		"addOne": func(i int) int { return i + 1 },
	}
	invoiceTemplate = template.Must(template.New("invoice").Funcs(funcMap).Parse(invoiceHTML))
}

// RenderInvoiceHTML renders the invoice template.
func RenderInvoiceHTML(inv Invoice) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const invoiceHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Tax Invoice {{.InvoiceNumber}}</title>
  <style>
    body { font-family: Arial, sans-serif; font-size: 12px; max-width: 720px; margin: 1.5rem auto; color: #222; }
    h1 { font-size: 18px; text-align: center; letter-spacing: 2px; margin-bottom: 0.25rem; }
    .meta { display: flex; justify-content: space-between; margin: 1rem 0; }
    table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
    th, td { border: 1px solid #888; padding: 6px 8px; text-align: left; }
    th { background: #f0f0f0; }
    td.num, th.num { text-align: right; }
    .totals td { border: none; }
    .totals tr.grand td { border-top: 2px solid #222; font-weight: bold; }
  </style>
</head>
<body>
  <h1>TAX INVOICE</h1>
  <div class="meta">
    <div>
      <strong>{{.CustomerName}}</strong><br>
      {{if .Address}}{{.Address}}<br>{{end}}
      {{if .CustomerGSTIN}}GSTIN: {{.CustomerGSTIN}}{{end}}
    </div>
    <div>
      Invoice No: {{.InvoiceNumber}}<br>
      {{if .InvoiceDate}}Date: {{.InvoiceDate}}<br>{{end}}
      {{if .PlaceOfSupply}}Place of Supply: {{.PlaceOfSupply}}{{end}}
    </div>
  </div>
  <table>
    <tr>
      <th>#</th><th>Description</th><th>HSN</th>
      <th class="num">Qty</th><th>Unit</th>
      <th class="num">Rate</th><th class="num">Amount</th>
    </tr>
    {{range $i, $line := .Lines}}
    <tr>
      <td>{{addOne $i}}</td>
      <td>{{$line.Description}}</td>
      <td>{{$line.HSNCode}}</td>
      <td class="num">{{$line.Quantity}}</td>
      <td>{{$line.Unit}}</td>
      <td class="num">{{money $line.Rate}}</td>
      <td class="num">{{money $line.Amount}}</td>
    </tr>
    {{end}}
  </table>
  <table class="totals">
    <tr><td></td><td class="num">Subtotal</td><td class="num">{{money .Subtotal}}</td></tr>
    <tr><td></td><td class="num">CGST ({{.GSTRate}}% / 2)</td><td class="num">{{money .CGST}}</td></tr>
    <tr><td></td><td class="num">SGST ({{.GSTRate}}% / 2)</td><td class="num">{{money .SGST}}</td></tr>
    <tr class="grand"><td></td><td class="num">Total</td><td class="num">{{money .Total}}</td></tr>
  </table>
</body>
</html>`
