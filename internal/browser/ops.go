package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

// Ops exposes the browser-driven fallbacks as one-shot operations. Each call
// launches its own session and closes it on every exit path, so no Chrome
// process outlives the operation it served.
type Ops struct {
	loginPageURL string
	email        string
	headless     bool
	timeout      time.Duration
	logger       *slog.Logger
}

// OpsConfig for browser operations
type OpsConfig struct {
	LoginPageURL string // pay.openai.com/p/login/<slug>
	Email        string
	Headless     bool
	Timeout      time.Duration
}

// NewOps creates the browser operation set
func NewOps(cfg OpsConfig, logger *slog.Logger) *Ops {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Ops{
		loginPageURL: cfg.LoginPageURL,
		email:        cfg.Email,
		headless:     cfg.Headless,
		timeout:      timeout,
		logger:       logger,
	}
}

// RequestLoginLink drives the portal's login form to trigger a link email
func (o *Ops) RequestLoginLink(ctx context.Context) error {
	session, err := NewSession(ctx, Options{Headless: o.headless, Timeout: o.timeout}, o.logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer session.Close()

	return session.RequestLoginLink(o.loginPageURL, o.email)
}

// ValidateLoginLink reports whether the login URL still opens the portal
func (o *Ops) ValidateLoginLink(ctx context.Context, loginURL string) bool {
	session, err := NewSession(ctx, Options{Headless: o.headless, Timeout: o.timeout}, o.logger)
	if err != nil {
		o.logger.Warn("failed to launch browser for link validation", "error", err)
		return false
	}
	defer session.Close()

	return session.ValidateLoginLink(loginURL)
}

// ScrapeInvoices reads invoice rows from the rendered portal page
func (o *Ops) ScrapeInvoices(ctx context.Context, loginURL string) []models.Invoice {
	session, err := NewSession(ctx, Options{Headless: o.headless, Timeout: o.timeout}, o.logger)
	if err != nil {
		o.logger.Warn("failed to launch browser for scraping", "error", err)
		return nil
	}
	defer session.Close()

	return session.ScrapeInvoices(loginURL)
}

// ExtractCredentials pulls session credentials out of the rendered login page
func (o *Ops) ExtractCredentials(ctx context.Context, loginURL string) (*models.Credentials, error) {
	session, err := NewSession(ctx, Options{Headless: o.headless, Timeout: o.timeout}, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer session.Close()

	return session.ExtractCredentials(loginURL)
}
