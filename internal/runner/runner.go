package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

// State names a stage of the run. Any failure loops back to RequestingLink
// until the attempt budget runs out.
type State string

const (
	StateIdle                  State = "idle"
	StateRequestingLink        State = "requesting_link"
	StateWaitingForEmail       State = "waiting_for_email"
	StateValidatingLink        State = "validating_link"
	StateExtractingCredentials State = "extracting_credentials"
	StateFetchingInvoices      State = "fetching_invoices"
	StateDownloading           State = "downloading"
	StateDone                  State = "done"
)

// Mailbox finds login links in the configured inbox
type Mailbox interface {
	FindLoginLink(ctx context.Context) string
}

// Portal is the provider's HTTP API surface
type Portal interface {
	RequestLoginLink(ctx context.Context) error
	ExtractCredentials(ctx context.Context, loginURL string) (*models.Credentials, error)
	FetchInvoices(ctx context.Context, creds *models.Credentials) ([]models.Invoice, error)
}

// Browser is the browser-driven fallback surface
type Browser interface {
	RequestLoginLink(ctx context.Context) error
	ExtractCredentials(ctx context.Context, loginURL string) (*models.Credentials, error)
	ValidateLoginLink(ctx context.Context, loginURL string) bool
	ScrapeInvoices(ctx context.Context, loginURL string) []models.Invoice
}

// Downloader persists invoices and reports how many landed on disk
type Downloader interface {
	Run(ctx context.Context, invoices []models.Invoice, dir string, topOnly bool) int
}

// Config is the retry policy plus per-run switches
type Config struct {
	MaxAttempts int
	RequestWait time.Duration // after requesting a new link
	RetryWait   time.Duration // between empty mailbox polls

	ForceRequest bool // request a fresh link before the first poll
	DownloadDir  string
	AllInvoices  bool // download everything instead of just the newest
	ListOnly     bool // report invoices without downloading
}

// Runner drives the whole retrieval pipeline
type Runner struct {
	config     Config
	mailbox    Mailbox
	portal     Portal
	browser    Browser
	downloader Downloader
	logger     *slog.Logger

	state     State
	requested bool // a link request has been issued this run
}

// New creates a runner
func New(cfg Config, mailbox Mailbox, portal Portal, browser Browser, downloader Downloader, logger *slog.Logger) *Runner {
	return &Runner{
		config:     cfg,
		mailbox:    mailbox,
		portal:     portal,
		browser:    browser,
		downloader: downloader,
		logger:     logger.With("component", "runner"),
		state:      StateIdle,
	}
}

// Run executes one full retrieval attempt loop. Returns true when invoices
// were processed, false when the attempt budget ran out. Exhaustion is an
// ordinary outcome, not an error.
func (r *Runner) Run(ctx context.Context) bool {
	if r.config.ForceRequest {
		r.logger.Info("requesting a fresh login link before the first check")
		r.requestLink(ctx)
		r.sleep(ctx, r.config.RequestWait)
	}

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			r.logger.Info("run cancelled", "attempt", attempt)
			return false
		}

		r.setState(StateWaitingForEmail)
		r.logger.Info("checking for login email", "attempt", attempt, "max_attempts", r.config.MaxAttempts)

		waited := false
		loginURL := r.mailbox.FindLoginLink(ctx)

		if loginURL != "" {
			if r.tryAPIPath(ctx, loginURL) || r.tryBrowserPath(ctx, loginURL) {
				r.setState(StateDone)
				r.logger.Info("successfully processed invoices")
				return true
			}

			// The link is spent or yields nothing; only a fresh one can help.
			r.logger.Info("login link unusable, requesting a new one")
			r.requestLink(ctx)
			r.sleep(ctx, r.config.RequestWait)
			waited = true
		} else if !r.requested {
			r.logger.Info("no login link in mailbox, requesting one")
			r.requestLink(ctx)
			r.sleep(ctx, r.config.RequestWait)
			waited = true
		}

		if !waited && attempt < r.config.MaxAttempts {
			r.logger.Info("waiting before next mailbox check", "wait", r.config.RetryWait)
			r.sleep(ctx, r.config.RetryWait)
		}
	}

	r.logger.Error("failed to find or use a valid login link", "attempts", r.config.MaxAttempts)
	return false
}

// tryAPIPath extracts credentials from the login URL and lists invoices via
// the provider API. Every miss is a soft failure handing over to the
// browser path.
func (r *Runner) tryAPIPath(ctx context.Context, loginURL string) bool {
	r.setState(StateExtractingCredentials)

	creds, err := r.portal.ExtractCredentials(ctx, loginURL)
	if err != nil {
		r.logger.Warn("credential extraction failed", "error", err)
		return false
	}
	if creds == nil {
		// Static HTML had no tokens; the rendered page may still carry them.
		creds, err = r.browser.ExtractCredentials(ctx, loginURL)
		if err != nil {
			r.logger.Warn("browser credential extraction failed", "error", err)
			return false
		}
		if creds == nil {
			return false
		}
	}

	r.setState(StateFetchingInvoices)
	invoices, err := r.portal.FetchInvoices(ctx, creds)
	if err != nil {
		r.logger.Warn("invoice fetch failed", "error", err)
		return false
	}
	if len(invoices) == 0 {
		r.logger.Info("API returned no invoices, falling back to browser scraping")
		return false
	}

	r.listInvoices(invoices)
	return r.finish(ctx, invoices)
}

// tryBrowserPath validates the link in a real browser and scrapes the portal page
func (r *Runner) tryBrowserPath(ctx context.Context, loginURL string) bool {
	r.setState(StateValidatingLink)
	if !r.browser.ValidateLoginLink(ctx, loginURL) {
		r.logger.Info("login link is invalid or expired")
		return false
	}

	invoices := r.browser.ScrapeInvoices(ctx, loginURL)
	if len(invoices) == 0 {
		r.logger.Info("no invoices found on the portal page")
		return false
	}

	r.listInvoices(invoices)
	return r.finish(ctx, invoices)
}

// finish downloads the invoices (unless list-only) and ends the run
func (r *Runner) finish(ctx context.Context, invoices []models.Invoice) bool {
	if r.config.ListOnly {
		r.logger.Info("list-only mode, invoices listed but not downloaded")
		return true
	}

	r.setState(StateDownloading)
	r.downloader.Run(ctx, invoices, r.config.DownloadDir, !r.config.AllInvoices)
	return true
}

// requestLink asks the provider for a fresh login link, API first, browser
// form second. Best effort: a failed request only costs this attempt.
func (r *Runner) requestLink(ctx context.Context) {
	r.setState(StateRequestingLink)
	r.requested = true

	err := r.portal.RequestLoginLink(ctx)
	if err == nil {
		return
	}
	r.logger.Info("API link request failed, falling back to browser", "error", err)

	if err := r.browser.RequestLoginLink(ctx); err != nil {
		r.logger.Warn("browser link request failed", "error", err)
	}
}

func (r *Runner) listInvoices(invoices []models.Invoice) {
	r.logger.Info("invoices found", "count", len(invoices))
	for i, inv := range invoices {
		r.logger.Info("invoice",
			"n", i+1,
			"date", inv.Date,
			"amount", inv.Amount,
			"status", inv.Status,
			"description", inv.Description)
	}
}

func (r *Runner) setState(s State) {
	if r.state != s {
		r.logger.Debug("state transition", "from", r.state, "to", s)
		r.state = s
	}
}

// sleep waits for d unless the context ends first
func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
