package mailbox

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// IMAP endpoints for common providers, checked before any probing
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"aol.com":        "imap.aol.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"zoho.com":       "imap.zoho.com:993",
}

// ResolveIMAPServer determines the IMAP endpoint for an email address. Used
// when IMAP_SERVER is not configured explicitly.
func ResolveIMAPServer(email string) (string, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid email address %q", email)
	}

	domain := strings.ToLower(parts[1])

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	// Probe the usual hostname conventions
	for _, host := range []string{"imap." + domain, "mail." + domain, domain} {
		if probeIMAP(host) {
			return host + ":993", nil
		}
	}

	if server := resolveViaMX(domain); server != "" {
		return server, nil
	}

	// Last resort guess; the connection attempt will surface the real error
	return "imap." + domain + ":993", nil
}

// probeIMAP checks whether host accepts connections on the IMAPS port
func probeIMAP(host string) bool {
	conn, err := net.DialTimeout("tcp", host+":993", 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveViaMX derives an IMAP host from the domain's primary MX record,
// e.g. mx.example.com -> imap.example.com
func resolveViaMX(domain string) string {
	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return ""
	}

	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) != 2 {
		return ""
	}

	for _, host := range []string{"imap." + parts[1], "mail." + parts[1]} {
		if probeIMAP(host) {
			return host + ":993"
		}
	}

	return ""
}
