package runner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

type fakeMailbox struct {
	links []string // one entry per poll, "" means nothing found
	polls int
}

func (f *fakeMailbox) FindLoginLink(ctx context.Context) string {
	f.polls++
	if f.polls <= len(f.links) {
		return f.links[f.polls-1]
	}
	return ""
}

type fakePortal struct {
	requests int
	creds    *models.Credentials
	invoices []models.Invoice
}

func (f *fakePortal) RequestLoginLink(ctx context.Context) error {
	f.requests++
	return nil
}

func (f *fakePortal) ExtractCredentials(ctx context.Context, loginURL string) (*models.Credentials, error) {
	return f.creds, nil
}

func (f *fakePortal) FetchInvoices(ctx context.Context, creds *models.Credentials) ([]models.Invoice, error) {
	return f.invoices, nil
}

type fakeBrowser struct {
	requests  int
	creds     *models.Credentials
	linkValid bool
	scraped   []models.Invoice
	validated int
}

func (f *fakeBrowser) RequestLoginLink(ctx context.Context) error {
	f.requests++
	return nil
}

func (f *fakeBrowser) ExtractCredentials(ctx context.Context, loginURL string) (*models.Credentials, error) {
	return f.creds, nil
}

func (f *fakeBrowser) ValidateLoginLink(ctx context.Context, loginURL string) bool {
	f.validated++
	return f.linkValid
}

func (f *fakeBrowser) ScrapeInvoices(ctx context.Context, loginURL string) []models.Invoice {
	return f.scraped
}

type downloadCall struct {
	count   int
	topOnly bool
}

type fakeDownloader struct {
	calls []downloadCall
}

func (f *fakeDownloader) Run(ctx context.Context, invoices []models.Invoice, dir string, topOnly bool) int {
	f.calls = append(f.calls, downloadCall{count: len(invoices), topOnly: topOnly})
	return len(invoices)
}

func newTestRunner(cfg Config, mb *fakeMailbox, p *fakePortal, b *fakeBrowser, d *fakeDownloader) *Runner {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 10
	}
	cfg.DownloadDir = "invoices"
	return New(cfg, mb, p, b, d, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunner_APIPathSuccess(t *testing.T) {
	mb := &fakeMailbox{links: []string{"https://pay.openai.com/p/session/abc"}}
	p := &fakePortal{
		creds: &models.Credentials{SessionID: "bps_1", Token: "ek_live_1"},
		invoices: []models.Invoice{
			{ID: "in_1", Date: "Mar 15, 2024"},
			{ID: "in_2", Date: "Feb 15, 2024"},
		},
	}
	b := &fakeBrowser{}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{}, mb, p, b, d).Run(context.Background())

	assert.True(t, ok)
	assert.Equal(t, 1, mb.polls, "success must terminate without further polling")
	assert.Zero(t, p.requests, "no link request needed when the mailbox has one")
	assert.Zero(t, b.validated, "API success must skip the browser path")
	require.Len(t, d.calls, 1)
	assert.Equal(t, 2, d.calls[0].count)
	assert.True(t, d.calls[0].topOnly, "default downloads only the newest invoice")
}

func TestRunner_AllInvoicesFlag(t *testing.T) {
	mb := &fakeMailbox{links: []string{"https://pay.openai.com/p/session/abc"}}
	p := &fakePortal{
		creds:    &models.Credentials{SessionID: "bps_1", Token: "ek_live_1"},
		invoices: []models.Invoice{{ID: "in_1"}},
	}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{AllInvoices: true}, mb, p, &fakeBrowser{}, d).Run(context.Background())

	require.True(t, ok)
	require.Len(t, d.calls, 1)
	assert.False(t, d.calls[0].topOnly)
}

func TestRunner_ListOnlySkipsDownload(t *testing.T) {
	mb := &fakeMailbox{links: []string{"https://pay.openai.com/p/session/abc"}}
	p := &fakePortal{
		creds:    &models.Credentials{SessionID: "bps_1", Token: "ek_live_1"},
		invoices: []models.Invoice{{ID: "in_1"}},
	}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{ListOnly: true}, mb, p, &fakeBrowser{}, d).Run(context.Background())

	assert.True(t, ok)
	assert.Empty(t, d.calls)
}

func TestRunner_BrowserFallback(t *testing.T) {
	mb := &fakeMailbox{links: []string{"https://pay.openai.com/p/session/abc"}}
	// No credentials anywhere: the API path yields nothing.
	p := &fakePortal{}
	b := &fakeBrowser{
		linkValid: true,
		scraped:   []models.Invoice{{ID: "invoice_1", Date: "15 Mar 2024"}},
	}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{}, mb, p, b, d).Run(context.Background())

	assert.True(t, ok)
	assert.Equal(t, 1, b.validated)
	require.Len(t, d.calls, 1)
	assert.Equal(t, 1, d.calls[0].count)
}

func TestRunner_EmptyMailboxExhaustsBudget(t *testing.T) {
	mb := &fakeMailbox{}
	p := &fakePortal{}
	b := &fakeBrowser{}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{MaxAttempts: 5}, mb, p, b, d).Run(context.Background())

	assert.False(t, ok)
	assert.Equal(t, 5, mb.polls)
	assert.Equal(t, 1, p.requests, "an empty mailbox triggers exactly one link request")
	assert.Zero(t, b.requests, "API request succeeded, browser fallback not needed")
	assert.Empty(t, d.calls)
}

func TestRunner_InvalidLinkRequestsFreshOne(t *testing.T) {
	mb := &fakeMailbox{links: []string{
		"https://pay.openai.com/p/session/expired",
		"https://pay.openai.com/p/session/expired",
	}}
	p := &fakePortal{} // no credentials, API path always misses
	b := &fakeBrowser{linkValid: false}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{MaxAttempts: 3}, mb, p, b, d).Run(context.Background())

	assert.False(t, ok)
	assert.Equal(t, 3, mb.polls)
	// One fresh request per spent link; the final empty poll does not add
	// another because one was already issued this run.
	assert.Equal(t, 2, p.requests)
	assert.Equal(t, 2, b.validated)
	assert.Empty(t, d.calls)
}

func TestRunner_CancelledContextStopsPolling(t *testing.T) {
	mb := &fakeMailbox{}
	p := &fakePortal{}
	d := &fakeDownloader{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := newTestRunner(Config{MaxAttempts: 10}, mb, p, &fakeBrowser{}, d).Run(ctx)

	assert.False(t, ok)
	assert.Zero(t, mb.polls, "a cancelled run must not keep polling the mailbox")
	assert.Zero(t, p.requests)
	assert.Empty(t, d.calls)
}

func TestRunner_ForceRequestIssuesUpfrontRequest(t *testing.T) {
	mb := &fakeMailbox{links: []string{"https://pay.openai.com/p/session/abc"}}
	p := &fakePortal{
		creds:    &models.Credentials{SessionID: "bps_1", Token: "ek_live_1"},
		invoices: []models.Invoice{{ID: "in_1"}},
	}
	d := &fakeDownloader{}

	ok := newTestRunner(Config{ForceRequest: true}, mb, p, &fakeBrowser{}, d).Run(context.Background())

	assert.True(t, ok)
	assert.Equal(t, 1, p.requests)
}
