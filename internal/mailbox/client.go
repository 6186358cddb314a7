package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/davidwahl/chatgpt-invoice/internal/parser"
)

// loginSubject is the subject line the payment provider uses for login-link mail.
const loginSubject = "Your customer portal login link"

// candidate is a fetched message body pending link extraction
type candidate struct {
	UID      uint32
	From     string
	Subject  string
	BodyHTML string
	BodyText string
}

// ClientConfig configuration for the mailbox watcher
type ClientConfig struct {
	Email       string
	Password    string
	Server      string // host:port
	DialTimeout time.Duration
}

// Client polls a single IMAP mailbox for portal login links
type Client struct {
	config    ClientConfig
	extractor *parser.LinkExtractor
	logger    *slog.Logger
}

// NewClient creates a new mailbox client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		config:    cfg,
		extractor: parser.NewLinkExtractor(),
		logger:    logger.With("component", "mailbox"),
	}
}

// FindLoginLink searches the inbox for an unread login-link email and returns
// the first portal URL found, scanning candidates newest-first. Returns ""
// when no candidate yields a link or the mailbox cannot be reached; both are
// soft outcomes the orchestrator retries.
func (c *Client) FindLoginLink(ctx context.Context) string {
	imapClient, err := c.connect(ctx)
	if err != nil {
		c.logger.Warn("failed to connect to IMAP server", "server", c.config.Server, "error", err)
		return ""
	}
	defer imapClient.Logout()

	if _, err := imapClient.Select("INBOX", true); err != nil {
		c.logger.Warn("failed to select INBOX", "error", err)
		return ""
	}

	uids, err := c.searchCandidates(imapClient)
	if err != nil {
		c.logger.Warn("mailbox search failed", "error", err)
		return ""
	}
	if len(uids) == 0 {
		c.logger.Info("no login-link emails found")
		return ""
	}

	candidates, err := c.fetchCandidates(imapClient, uids)
	if err != nil {
		c.logger.Warn("failed to fetch candidate messages", "error", err)
		// Partial fetches are still worth scanning.
	}

	return c.pickLoginLink(candidates)
}

// pickLoginLink scans candidates newest-first and returns the first link
// found. No attempt is made to pick the "correct" email when several unread
// ones match; the most recent link wins.
func (c *Client) pickLoginLink(candidates []*candidate) string {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].UID > candidates[j].UID })

	for _, cand := range candidates {
		c.logger.Debug("checking email", "from", cand.From, "subject", cand.Subject)
		if url := c.extractor.Extract(cand.BodyHTML, cand.BodyText); url != "" {
			c.logger.Info("found login URL", "from", cand.From, "uid", cand.UID)
			return url
		}
	}

	return ""
}

// connect dials the IMAP server with TLS and logs in
func (c *Client) connect(ctx context.Context) (*client.Client, error) {
	timeout := c.config.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(c.config.Email, c.config.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return imapClient, nil
}

// searchCandidates looks for unread provider emails first, then falls back to
// a subject-only search across the whole mailbox.
func (c *Client) searchCandidates(imapClient *client.Client) ([]uint32, error) {
	narrowed := imap.NewSearchCriteria()
	narrowed.WithoutFlags = []string{imap.SeenFlag}
	narrowed.Header.Add("Subject", loginSubject)

	fromOpenAI := imap.NewSearchCriteria()
	fromOpenAI.Header.Add("From", "openai")
	fromStripe := imap.NewSearchCriteria()
	fromStripe.Header.Add("From", "stripe")
	narrowed.Or = [][2]*imap.SearchCriteria{{fromOpenAI, fromStripe}}

	uids, err := imapClient.UidSearch(narrowed)
	if err != nil {
		return nil, fmt.Errorf("narrowed search: %w", err)
	}
	if len(uids) > 0 {
		return uids, nil
	}

	// Fallback: the sender header varies between providers, the subject does not.
	broad := imap.NewSearchCriteria()
	broad.Header.Add("Subject", loginSubject)

	uids, err = imapClient.UidSearch(broad)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}
	return uids, nil
}

// fetchCandidates fetches full bodies for the given UIDs and parses them
func (c *Client) fetchCandidates(imapClient *client.Client, uids []uint32) ([]*candidate, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- imapClient.UidFetch(seqSet, items, messages)
	}()

	var candidates []*candidate
	for msg := range messages {
		cand, err := c.parseMessage(msg, section)
		if err != nil {
			c.logger.Warn("failed to parse message", "uid", msg.Uid, "error", err)
			continue
		}
		candidates = append(candidates, cand)
	}

	if err := <-done; err != nil {
		return candidates, fmt.Errorf("failed to fetch: %w", err)
	}

	return candidates, nil
}

// parseMessage extracts the sender, subject and text/HTML bodies from an IMAP message
func (c *Client) parseMessage(msg *imap.Message, section *imap.BodySectionName) (*candidate, error) {
	cand := &candidate{UID: msg.Uid}

	if msg.Envelope != nil {
		cand.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			cand.From = msg.Envelope.From[0].Address()
		}
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return cand, nil
	}

	mr, err := mail.CreateReader(bodyReader)
	if err != nil {
		return cand, fmt.Errorf("failed to create mail reader: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.logger.Warn("failed to read part", "uid", msg.Uid, "error", err)
			break
		}

		if h, ok := part.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}

			if strings.HasPrefix(ct, "text/html") {
				cand.BodyHTML = string(body)
			} else if strings.HasPrefix(ct, "text/plain") {
				cand.BodyText = string(body)
			}
		}
	}

	return cand, nil
}
