package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/example/petshop-checkout/internal/domain/order"
)

const (
	shopName    = "Meow Meow Pet Shop"
	shopAddress = "Savar, Bangladesh"
	shopEmail   = "info@meowmeowpetshop.com"
	shopPhone   = "+880 1234-567890"
)

var documentTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money":    formatMoney,
	"date":     func(t time.Time) string { return t.Format("2006-01-02") },
	"subtotal": func(i order.Item) int64 { return i.Price * int64(i.Quantity) },
	"address":  formatAddress,
}).Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Invoice {{.Invoice.InvoiceNumber}}</title>
</head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 800px; margin: 0 auto; padding: 20px;">
	<table style="width: 100%; border-bottom: 2px solid #333; padding-bottom: 10px;">
		<tr>
			<td>
				<h1 style="margin: 0;">{{.ShopName}}</h1>
				<p style="margin: 4px 0;">{{.ShopAddress}}</p>
				<p style="margin: 4px 0;">{{.ShopEmail}} | {{.ShopPhone}}</p>
			</td>
			<td style="text-align: right;">
				<h2 style="margin: 0;">INVOICE #{{.Invoice.InvoiceNumber}}</h2>
				<p style="margin: 4px 0;">Date: {{date .Invoice.OrderDate}}</p>
			</td>
		</tr>
	</table>

	<table style="width: 100%; margin: 20px 0;">
		<tr>
			<td style="vertical-align: top;">
				<h3 style="margin: 0 0 8px 0;">Bill To</h3>
				<p style="margin: 2px 0;">{{.Invoice.CustomerInfo.Name}}</p>
				<p style="margin: 2px 0;">{{.Invoice.CustomerInfo.Email}}</p>
				<p style="margin: 2px 0;">{{.Invoice.CustomerInfo.Phone}}</p>
				{{- with address .Invoice.CustomerInfo.Address}}
				<p style="margin: 2px 0;">{{.}}</p>
				{{- end}}
			</td>
			<td style="vertical-align: top; text-align: right;">
				<p style="margin: 2px 0;">Order ID: {{.Invoice.OrderID}}</p>
				<p style="margin: 2px 0;">Payment Method: {{.Invoice.PaymentMethod}}</p>
				<p style="margin: 2px 0;">Payment Status: {{.Invoice.PaymentStatus}}</p>
			</td>
		</tr>
	</table>

	<table style="width: 100%; border-collapse: collapse;">
		<thead>
			<tr style="background: #f3f3f3;">
				<th style="padding: 8px; text-align: left;">Item</th>
				<th style="padding: 8px; text-align: center;">Quantity</th>
				<th style="padding: 8px; text-align: right;">Price</th>
				<th style="padding: 8px; text-align: right;">Total</th>
			</tr>
		</thead>
		<tbody>
		{{- range .Invoice.Items}}
			<tr>
				<td style="padding: 8px; border-bottom: 1px solid #eee;">{{if .Name}}{{.Name}}{{else}}{{.ProductID}}{{end}}</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">{{money .Price}}</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">{{money (subtotal .)}}</td>
			</tr>
		{{- end}}
		</tbody>
	</table>

	<table style="width: 100%; margin-top: 20px;">
		<tr>
			<td style="text-align: right;">Subtotal:</td>
			<td style="text-align: right; width: 150px;">{{money .Invoice.Subtotal}}</td>
		</tr>
		<tr>
			<td style="text-align: right; font-weight: bold;">Total:</td>
			<td style="text-align: right; width: 150px; font-weight: bold;">{{money .Invoice.Total}}</td>
		</tr>
	</table>

	<p style="margin-top: 40px; text-align: center; color: #999;">Thank you for shopping with {{.ShopName}}!</p>
</body>
</html>
`))

type documentData struct {
	ShopName    string
	ShopAddress string
	ShopEmail   string
	ShopPhone   string
	Invoice     *Invoice
}

// Render produces the printable HTML document for an invoice.
// The output depends only on the invoice record.
func Render(inv *Invoice) ([]byte, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, documentData{
		ShopName:    shopName,
		ShopAddress: shopAddress,
		ShopEmail:   shopEmail,
		ShopPhone:   shopPhone,
		Invoice:     inv,
	})
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

// Filename is the download name of the rendered document
func Filename(inv *Invoice) string {
	return fmt.Sprintf("invoice-%s.html", inv.InvoiceNumber)
}

func formatAddress(a Address) string {
	var parts []string
	for _, p := range []string{a.Address, a.Area, a.City, a.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// formatMoney formats an amount in taka with comma separators
func formatMoney(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return "৳" + sign + str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(",")
	}

	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}

	return "৳" + sign + result.String()
}
