package parser

import "regexp"

// Token formats the billing portal embeds in its pages. The session identifier
// and bearer token always appear together in server-rendered HTML; a page
// missing either one is client-rendered and needs the browser path instead.
var (
	loginURLRegex  = regexp.MustCompile(`https://pay\.openai\.com/p/session/[^\s"'<>]+`)
	sessionIDRegex = regexp.MustCompile(`bps_[A-Za-z0-9]+`)
	tokenRegex     = regexp.MustCompile(`ek_live_[A-Za-z0-9_-]+`)
	csrfRegex      = regexp.MustCompile(`(?i)csrf["\s:]+["']([^"']+)["']`)
)

// LinkExtractor finds portal login links in email bodies
type LinkExtractor struct {
	html *HTMLParser
}

// NewLinkExtractor creates a new link extractor
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{html: NewHTMLParser()}
}

// Extract returns the first login URL found in the given bodies, preferring
// raw HTML, then the HTML rendered to text, then the plain text part.
// Returns "" when no body contains a link.
func (e *LinkExtractor) Extract(bodyHTML, bodyText string) string {
	if url := loginURLRegex.FindString(bodyHTML); url != "" {
		return url
	}

	// Some senders hide the href behind tracking wrappers but keep the bare
	// URL in the visible text.
	if bodyHTML != "" {
		if text, err := e.html.Parse(bodyHTML); err == nil {
			if url := loginURLRegex.FindString(text); url != "" {
				return url
			}
		}
	}

	return loginURLRegex.FindString(bodyText)
}

// FindSessionID returns the first session identifier (bps_...) in the page, or ""
func FindSessionID(page string) string {
	return sessionIDRegex.FindString(page)
}

// FindBearerToken returns the first bearer token (ek_live_...) in the page, or ""
func FindBearerToken(page string) string {
	return tokenRegex.FindString(page)
}

// FindCSRFToken returns a CSRF token embedded in page content, or ""
func FindCSRFToken(page string) string {
	m := csrfRegex.FindStringSubmatch(page)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
