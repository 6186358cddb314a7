package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

// apiInvoice mirrors the provider's invoice-listing response shape
type apiInvoice struct {
	ID               string `json:"id"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	InvoicePDF       string `json:"invoice_pdf"`
	EffectiveAt      int64  `json:"effective_at"` // unix seconds
	AmountPaid       int64  `json:"amount_paid"`  // integer cents
	Status           string `json:"status"`
	Number           string `json:"number"`
	Lines            struct {
		Data []struct {
			Description string `json:"description"`
		} `json:"data"`
	} `json:"lines"`
}

type invoiceListResponse struct {
	Data []apiInvoice `json:"data"`
}

// FetchInvoices lists invoices for the session using the extracted
// credentials, newest first as the provider returns them. A non-success
// status or a response without a valid `data` array yields (nil, nil): the
// caller falls back to browser scraping.
func (c *Client) FetchInvoices(ctx context.Context, creds *models.Credentials) ([]models.Invoice, error) {
	endpoint := fmt.Sprintf("%s/v1/billing_portal/sessions/%s/invoices", c.baseURL, creds.SessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("Stripe-Version", stripeVersion)
	req.Header.Set("User-Agent", userAgent)
	if len(creds.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(creds.Cookies, "; "))
	}
	if creds.CSRFToken != "" {
		req.Header.Set("X-Stripe-CSRF-Token", creds.CSRFToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("invoice API returned non-success status", "status", resp.StatusCode)
		return nil, nil
	}

	var list invoiceListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		c.logger.Warn("unexpected invoice API response shape", "error", err)
		return nil, nil
	}
	if list.Data == nil {
		c.logger.Warn("invoice API response has no data array")
		return nil, nil
	}

	invoices := make([]models.Invoice, 0, len(list.Data))
	for _, inv := range list.Data {
		invoices = append(invoices, normalizeInvoice(inv))
	}

	c.logger.Info("fetched invoices from API", "count", len(invoices))
	return invoices, nil
}

// normalizeInvoice converts a raw API record into the internal invoice shape
func normalizeInvoice(inv apiInvoice) models.Invoice {
	description := "Unknown description"
	if len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Description != "" {
		description = inv.Lines.Data[0].Description
	}

	return models.Invoice{
		ID:          inv.ID,
		HostedURL:   inv.HostedInvoiceURL,
		PDFURL:      inv.InvoicePDF,
		Date:        time.Unix(inv.EffectiveAt, 0).UTC().Format("Jan 2, 2006"),
		Amount:      fmt.Sprintf("%.2f", float64(inv.AmountPaid)/100),
		Status:      capitalize(inv.Status),
		Description: description,
		Number:      inv.Number,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
