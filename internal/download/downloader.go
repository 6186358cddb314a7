package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

// Notifier is told about every freshly downloaded invoice file. The return
// value reports whether the invoice was emailed onward.
type Notifier interface {
	InvoiceDownloaded(ctx context.Context, path, invoiceDate string) bool
}

// Ledger records download history. Implementations must tolerate being
// called for files that already existed.
type Ledger interface {
	Record(ctx context.Context, rec models.DownloadRecord)
}

// Config for the downloader
type Config struct {
	FilenameName string        // token embedded in every PDF filename
	Pause        time.Duration // minimum spacing between PDF fetches
	HTTPTimeout  time.Duration
}

// Downloader persists invoice PDFs to disk. De-duplication is by filename:
// an existing file short-circuits the fetch and counts as downloaded.
type Downloader struct {
	filenameName string
	httpClient   *http.Client
	limiter      *rate.Limiter
	notifier     Notifier
	ledger       Ledger
	logger       *slog.Logger
}

// New creates a new downloader. notifier and ledger may be nil.
func New(cfg Config, notifier Notifier, ledger Ledger, logger *slog.Logger) *Downloader {
	pause := cfg.Pause
	if pause == 0 {
		pause = 500 * time.Millisecond
	}
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Downloader{
		filenameName: cfg.FilenameName,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Every(pause), 1),
		notifier:     notifier,
		ledger:       ledger,
		logger:       logger.With("component", "download"),
	}
}

// Run downloads the given invoices into dir and returns how many ended up on
// disk (freshly fetched or already present). topOnly restricts the work to
// the first, newest invoice. Per-invoice failures are logged and skipped.
func (d *Downloader) Run(ctx context.Context, invoices []models.Invoice, dir string, topOnly bool) int {
	if len(invoices) == 0 {
		d.logger.Info("no invoices to download")
		return 0
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.logger.Error("failed to create download directory", "dir", dir, "error", err)
		return 0
	}

	selected := invoices
	if topOnly {
		selected = invoices[:1]
		d.logger.Info("downloading most recent invoice only",
			"date", invoices[0].Date, "amount", invoices[0].Amount)
	} else {
		d.logger.Info("downloading all invoices", "count", len(selected))
	}

	success := 0
	for i, inv := range selected {
		d.logger.Info("processing invoice",
			"n", i+1, "of", len(selected), "date", inv.Date, "amount", inv.Amount)

		date := FormatDate(inv.Date)
		filename := d.Filename(date)
		path := filepath.Join(dir, filename)

		if _, err := os.Stat(path); err == nil {
			d.logger.Info("invoice already exists, skipping download", "file", filename)
			d.record(ctx, inv, date, filename, false)
			success++
			continue
		}

		if err := d.fetch(ctx, inv, path); err != nil {
			d.logger.Warn("failed to download invoice", "file", filename, "error", err)
			continue
		}

		d.logger.Info("invoice downloaded", "file", filename)
		emailed := false
		if d.notifier != nil {
			emailed = d.notifier.InvoiceDownloaded(ctx, path, inv.Date)
		}
		d.record(ctx, inv, date, filename, emailed)
		success++
	}

	d.logger.Info("download complete", "downloaded", success, "selected", len(selected))
	return success
}

// fetch resolves the PDF URL, paces the request, and writes the file
func (d *Downloader) fetch(ctx context.Context, inv models.Invoice, path string) error {
	pdfURL := inv.PDFURL
	if pdfURL == "" {
		pdfURL = derivePDFURL(inv.HostedURL)
		d.logger.Debug("constructed PDF URL", "url", pdfURL)
	}
	if pdfURL == "" {
		return fmt.Errorf("invoice has no usable PDF URL")
	}

	// Pacing guards against the PDF host's rate limiting
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("PDF fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read PDF body: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Filename builds the canonical invoice filename for a formatted date
func (d *Downloader) Filename(formattedDate string) string {
	return fmt.Sprintf("OpenAI_%s_%s.pdf", formattedDate, d.filenameName)
}

func (d *Downloader) record(ctx context.Context, inv models.Invoice, date, filename string, emailed bool) {
	if d.ledger == nil {
		return
	}
	d.ledger.Record(ctx, models.DownloadRecord{
		InvoiceID:    inv.ID,
		InvoiceDate:  date,
		Filename:     filename,
		Emailed:      emailed,
		DownloadedAt: time.Now(),
	})
}

// derivePDFURL rewrites a hosted invoice URL into the direct PDF endpoint:
// invoice.stripe.com/i/<ref>?<query> -> pay.stripe.com/invoice/<ref>/pdf
func derivePDFURL(hostedURL string) string {
	if hostedURL == "" {
		return ""
	}

	u := strings.Replace(hostedURL, "https://invoice.stripe.com/i/", "https://pay.stripe.com/invoice/", 1)
	if idx := strings.Index(u, "?"); idx >= 0 {
		u = u[:idx]
	}
	if !strings.HasSuffix(u, "/pdf") {
		u += "/pdf"
	}
	return u
}
