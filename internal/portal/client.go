package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davidwahl/chatgpt-invoice/internal/parser"
	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

const (
	defaultBaseURL = "https://pay.openai.com"

	// Publishable client key the portal ships to every visitor; authorizes
	// nothing beyond triggering the login-link email.
	accessClientKey = "pk_live_51HOrSwC6h1nxGoI3lTAgRjYVrz4dU3fVOabyCcKR3pbEJguCVAlqCxdxCUvoRh1XWwRacViovU3kLKvpkjh7IqkW00iXQsjo3n"

	// The portal rejects requests without a browser-looking User-Agent.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	stripeVersion = "2025-06-30.basil"
)

// Config for the portal client
type Config struct {
	BaseURL string // empty means the production portal
	Email   string // account the login link is mailed to
	Slug    string // portal identifier from the login URL
	Timeout time.Duration
}

// Client talks to the payment provider's billing-portal HTTP API
type Client struct {
	baseURL    string
	email      string
	slug       string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new portal client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		email:   cfg.Email,
		slug:    cfg.Slug,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "portal"),
	}
}

// RequestLoginLink asks the provider to email a fresh login link. A non-2xx
// status is returned as an error so the caller can fall back to the
// browser-driven form submission.
func (c *Client) RequestLoginLink(ctx context.Context) error {
	endpoint := c.baseURL + "/v1/billing_portal/access_client/send_access?include_only%5B%5D=id%2Cclient_secret"

	form := url.Values{}
	form.Set("slug", c.slug)
	form.Set("email", c.email)
	form.Set("locale", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessClientKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("link request failed with status %d", resp.StatusCode)
	}

	c.logger.Info("login link requested via API")
	return nil
}

// ExtractCredentials fetches the login URL with a plain GET and pattern-matches
// the session identifier and bearer token in the returned HTML, capturing any
// session cookies set on the response. Returns (nil, nil) when either token is
// missing: the page is client-rendered and the browser path must be used.
func (c *Client) ExtractCredentials(ctx context.Context, loginURL string) (*models.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read login page: %w", err)
	}

	html := string(body)
	sessionID := parser.FindSessionID(html)
	token := parser.FindBearerToken(html)

	if sessionID == "" || token == "" {
		c.logger.Info("credentials not present in static HTML, page is likely client-rendered")
		return nil, nil
	}

	creds := &models.Credentials{
		SessionID: sessionID,
		Token:     token,
		CSRFToken: parser.FindCSRFToken(html),
	}
	for _, cookie := range resp.Cookies() {
		creds.Cookies = append(creds.Cookies, cookie.Name+"="+cookie.Value)
	}

	c.logger.Info("extracted API credentials",
		"session_id", sessionID,
		"token_prefix", truncate(token, 20),
		"cookies", len(creds.Cookies))

	return creds, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
