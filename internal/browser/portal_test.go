package browser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvoiceRows(t *testing.T) {
	t.Run("extracts rows with all fields", func(t *testing.T) {
		html := `<html><body>
			<a href="https://invoice.stripe.com/i/acct/inv_1?s=ap">
				<span class="Text sn-1opxpgz0">15 Mar 2024</span>
				<span class="Text sn-1opxpgz0">$20.00</span>
				<span class="Badge sn-6ldk2i">Paid</span>
			</a>
			<a href="https://invoice.stripe.com/i/acct/inv_2?s=ap">
				<span class="Text sn-1opxpgz0">15 Feb 2024</span>
				<span class="Text sn-1opxpgz0">$20.00</span>
				<span class="Badge sn-6ldk2i">Paid</span>
			</a>
		</body></html>`

		invoices := parseInvoiceRows(html)
		require.Len(t, invoices, 2)

		assert.Equal(t, "invoice_1", invoices[0].ID)
		assert.Equal(t, "https://invoice.stripe.com/i/acct/inv_1?s=ap", invoices[0].HostedURL)
		assert.Equal(t, "15 Mar 2024", invoices[0].Date)
		assert.Equal(t, "$20.00", invoices[0].Amount)
		assert.Equal(t, "Paid", invoices[0].Status)
		assert.Equal(t, "15 Feb 2024", invoices[1].Date)
	})

	t.Run("missing fields become placeholders without dropping the row", func(t *testing.T) {
		html := `<a href="https://invoice.stripe.com/i/acct/inv_3"></a>`

		invoices := parseInvoiceRows(html)
		require.Len(t, invoices, 1)
		assert.Equal(t, "Unknown date", invoices[0].Date)
		assert.Equal(t, "Unknown amount", invoices[0].Amount)
		assert.Equal(t, "Unknown status", invoices[0].Status)
		assert.Equal(t, "Unknown description", invoices[0].Description)
	})

	t.Run("unrelated anchors are ignored", func(t *testing.T) {
		html := `<a href="https://example.com/other">not an invoice</a>`
		assert.Empty(t, parseInvoiceRows(html))
	})

	t.Run("unparseable input yields nothing", func(t *testing.T) {
		assert.Empty(t, parseInvoiceRows(""))
	})

	t.Run("ids stay sequential when anchors are interleaved with noise", func(t *testing.T) {
		html := `<html><body>
			<a href="https://invoice.stripe.com/i/acct/inv_1"></a>
			<a href="https://example.com/support">help</a>
			<a href="https://invoice.stripe.com/i/acct/inv_2"></a>
			<a href="https://invoice.stripe.com/i/acct/inv_3"></a>
		</body></html>`

		invoices := parseInvoiceRows(html)
		require.Len(t, invoices, 3)
		for i, inv := range invoices {
			assert.Equal(t, fmt.Sprintf("invoice_%d", i+1), inv.ID)
		}
	})
}
