package models

import "time"

// Invoice represents a single billing-portal invoice. Provider ordering is
// newest-first and is preserved everywhere.
type Invoice struct {
	ID          string `json:"id"`
	HostedURL   string `json:"hosted_url"`  // customer-facing invoice page
	PDFURL      string `json:"pdf_url"`     // direct PDF link, empty for scraped rows
	Date        string `json:"date"`        // human-readable, e.g. "Mar 15, 2024"
	Amount      string `json:"amount"`      // decimal string, e.g. "20.00"
	Status      string `json:"status"`      // capitalized, e.g. "Paid"
	Description string `json:"description"`
	Number      string `json:"number"`
}

// Credentials are session credentials extracted from a login link. They are
// used for a single invoice-listing call and never persisted.
type Credentials struct {
	SessionID string   // bps_...
	Token     string   // ek_live_... bearer token
	CSRFToken string   // optional
	Cookies   []string // "name=value" pairs captured alongside the tokens
}

// DownloadRecord is a ledger row written after each download attempt that
// produced (or found) a file on disk. The file itself stays the authoritative
// de-duplication signal; the ledger is bookkeeping only.
type DownloadRecord struct {
	ID           int64     `db:"id"`
	InvoiceID    string    `db:"invoice_id"`
	InvoiceDate  string    `db:"invoice_date"` // canonical YYYY-MM-DD form
	Filename     string    `db:"filename"`
	Emailed      bool      `db:"emailed"`
	DownloadedAt time.Time `db:"downloaded_at"`
}
