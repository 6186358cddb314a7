package browser

import (
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Selector candidates for the login form's email input, tried in order
var emailInputSelectors = []string{
	"input[type='email']",
	"input[name='email']",
	"input[placeholder*='email' i]",
	"input[id*='email' i]",
}

// clickSubmitJS clicks the first visible button that looks like a submit
// control. Heuristic: type=submit, a class containing "submit", or text
// containing continue/login/sign in.
const clickSubmitJS = `(() => {
	const looksLikeSubmit = (b) => {
		const cls = (b.className || "").toLowerCase();
		const text = (b.textContent || "").toLowerCase();
		return b.type === "submit" || cls.includes("submit") ||
			text.includes("submit") || text.includes("continue") ||
			text.includes("login") || text.includes("sign in");
	};
	for (const b of document.querySelectorAll("button")) {
		if (b.offsetParent !== null && looksLikeSubmit(b)) {
			b.click();
			return b.textContent.trim();
		}
	}
	return "";
})()`

// RequestLoginLink submits the portal's login form so the provider emails a
// fresh link. Best effort: every failure is logged and returned, but callers
// treat errors as "no link requested", never as fatal.
func (s *Session) RequestLoginLink(loginPageURL, email string) error {
	s.logger.Info("opening portal login page", "url", loginPageURL)

	if err := s.timed(30*time.Second, chromedp.Navigate(loginPageURL)); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	// First candidate that appears wins; each gets its own bounded wait so a
	// missing selector cannot stall the whole operation.
	var emailSel string
	for _, sel := range emailInputSelectors {
		if err := s.timed(15*time.Second, chromedp.WaitVisible(sel, chromedp.ByQuery)); err == nil {
			emailSel = sel
			s.logger.Debug("found email field", "selector", sel)
			break
		}
	}
	if emailSel == "" {
		return fmt.Errorf("could not find email input field")
	}

	s.logger.Info("submitting login form", "email", email)
	if err := s.timed(15*time.Second,
		chromedp.SendKeys(emailSel, email, chromedp.ByQuery),
		chromedp.SendKeys(emailSel, kb.Enter, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return fmt.Errorf("failed to fill login form: %w", err)
	}

	// Some portal variants need an explicit click on top of the Enter press
	var clicked string
	if err := s.timed(10*time.Second, chromedp.Evaluate(clickSubmitJS, &clicked)); err != nil {
		s.logger.Warn("submit button lookup failed", "error", err)
	} else if clicked != "" {
		s.logger.Debug("clicked submit button", "text", clicked)
	}

	// Give the form submission time to land before the session closes
	if err := s.timed(10*time.Second, chromedp.Sleep(5*time.Second)); err != nil {
		s.logger.Warn("post-submit wait interrupted", "error", err)
	}

	s.logger.Info("login link request submitted")
	return nil
}
