package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIMAPServer_KnownProviders(t *testing.T) {
	// Known providers resolve from the table alone, no probing.
	cases := map[string]string{
		"user@gmail.com":   "imap.gmail.com:993",
		"user@GMAIL.com":   "imap.gmail.com:993",
		"user@outlook.com": "outlook.office365.com:993",
		"user@yahoo.com":   "imap.mail.yahoo.com:993",
		"user@icloud.com":  "imap.mail.me.com:993",
	}

	for email, want := range cases {
		server, err := ResolveIMAPServer(email)
		require.NoError(t, err, email)
		assert.Equal(t, want, server, email)
	}
}

func TestResolveIMAPServer_InvalidAddress(t *testing.T) {
	for _, email := range []string{"", "no-at-sign", "two@signs@here"} {
		_, err := ResolveIMAPServer(email)
		assert.Error(t, err, email)
	}
}
