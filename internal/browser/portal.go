package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/davidwahl/chatgpt-invoice/internal/parser"
	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

const (
	invoiceAnchorSelector = "a[href*='invoice.stripe.com']"
	portalRootSelector    = "div.db-CustomerPortalRoot"

	csrfCookieName = "stripe.customerportal.csrf"
)

// ValidateLoginLink opens the login URL and reports whether it still grants a
// portal session. Expired links redirect to an error URL; live ones render
// either invoice links or the portal root container.
func (s *Session) ValidateLoginLink(loginURL string) bool {
	s.logger.Info("testing login link", "url", loginURL)

	var currentURL string
	err := s.timed(30*time.Second,
		chromedp.Navigate(loginURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&currentURL),
	)
	if err != nil {
		s.logger.Warn("failed to open login link", "error", err)
		return false
	}

	lowered := strings.ToLower(currentURL)
	if strings.Contains(lowered, "error") || strings.Contains(lowered, "expired") {
		s.logger.Info("login link appears expired or invalid", "url", currentURL)
		return false
	}

	if err := s.timed(5*time.Second, chromedp.WaitVisible(invoiceAnchorSelector, chromedp.ByQuery)); err == nil {
		s.logger.Info("login link is valid, invoice links present")
		return true
	}
	if err := s.timed(5*time.Second, chromedp.WaitVisible(portalRootSelector, chromedp.ByQuery)); err == nil {
		s.logger.Info("login link is valid, portal root present")
		return true
	}

	s.logger.Info("could not verify portal loaded")
	return false
}

// ScrapeInvoices renders the portal page and reads invoice rows out of the
// resulting HTML. Fields that cannot be located are filled with "Unknown"
// placeholders rather than failing the row.
func (s *Session) ScrapeInvoices(loginURL string) []models.Invoice {
	s.logger.Info("accessing billing portal", "url", loginURL)

	if err := s.timed(30*time.Second, chromedp.Navigate(loginURL)); err != nil {
		s.logger.Warn("failed to open portal", "error", err)
		return nil
	}

	if err := s.timed(8*time.Second, chromedp.WaitVisible(invoiceAnchorSelector, chromedp.ByQuery)); err != nil {
		s.logger.Warn("invoice history did not appear", "error", err)
		// The anchors may still be in the DOM without being visible; read
		// the page anyway.
	}

	var html string
	if err := s.timed(10*time.Second, chromedp.OuterHTML("html", &html)); err != nil {
		s.logger.Warn("failed to read portal page", "error", err)
		return nil
	}

	invoices := parseInvoiceRows(html)
	s.logger.Info("scraped invoices from portal", "count", len(invoices))
	return invoices
}

// parseInvoiceRows extracts invoice rows from rendered portal HTML. The
// portal's class names are build hashes; the stable parts are the substrings
// matched here.
func parseInvoiceRows(html string) []models.Invoice {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var invoices []models.Invoice
	doc.Find(invoiceAnchorSelector).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		// IDs number the kept rows, so a skipped anchor leaves no gap.
		inv := models.Invoice{
			ID:          fmt.Sprintf("invoice_%d", len(invoices)+1),
			HostedURL:   href,
			Date:        "Unknown date",
			Amount:      "Unknown amount",
			Status:      "Unknown status",
			Description: "Unknown description",
		}

		cells := link.Find("span[class*='1opxpgz']")
		if text := strings.TrimSpace(cells.Eq(0).Text()); text != "" {
			inv.Date = text
		}
		if text := strings.TrimSpace(cells.Eq(1).Text()); text != "" {
			inv.Amount = text
		}
		if text := strings.TrimSpace(link.Find("span[class*='sn-6ldk2i']").Text()); text != "" {
			inv.Status = text
		}

		invoices = append(invoices, inv)
	})

	return invoices
}

// ExtractCredentials navigates the login URL and pulls session credentials
// out of the rendered page, including cookies and the CSRF token the static
// HTTP path cannot see. Returns (nil, nil) when the tokens are absent.
func (s *Session) ExtractCredentials(loginURL string) (*models.Credentials, error) {
	s.logger.Info("extracting credentials via browser", "url", loginURL)

	var html string
	err := s.timed(30*time.Second,
		chromedp.Navigate(loginURL),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render login page: %w", err)
	}

	sessionID := parser.FindSessionID(html)
	token := parser.FindBearerToken(html)
	if sessionID == "" || token == "" {
		s.logger.Info("credentials not present in rendered page")
		return nil, nil
	}

	creds := &models.Credentials{
		SessionID: sessionID,
		Token:     token,
	}

	err = s.timed(10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, cookie := range cookies {
			creds.Cookies = append(creds.Cookies, cookie.Name+"="+cookie.Value)
			if cookie.Name == csrfCookieName {
				creds.CSRFToken = cookie.Value
			}
		}
		return nil
	}))
	if err != nil {
		s.logger.Warn("failed to read browser cookies", "error", err)
	}

	if creds.CSRFToken == "" {
		creds.CSRFToken = parser.FindCSRFToken(html)
	}

	s.logger.Info("extracted credentials from rendered page",
		"session_id", sessionID, "cookies", len(creds.Cookies), "csrf", creds.CSRFToken != "")

	return creds, nil
}
