package notify

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
)

// MailerConfig for the SMTP notifier
type MailerConfig struct {
	Server   string // host:port, implicit TLS assumed on 465
	Username string
	Password string
	From     string
	To       string
	Name     string // display name used in the subject line
}

// Mailer emails downloaded invoice PDFs to the configured recipient
type Mailer struct {
	config MailerConfig
	logger *slog.Logger
}

// NewMailer creates a new mailer
func NewMailer(cfg MailerConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		config: cfg,
		logger: logger.With("component", "mailer"),
	}
}

// SendInvoice emails the PDF at path as an attachment. Returns false on any
// failure; sending is best-effort and never aborts the run.
func (m *Mailer) SendInvoice(ctx context.Context, path, invoiceDate string) bool {
	m.logger.Info("preparing invoice email", "date", invoiceDate, "to", m.config.To)

	content, err := os.ReadFile(path)
	if err != nil {
		m.logger.Warn("failed to read invoice file", "path", path, "error", err)
		return false
	}

	subject := fmt.Sprintf("ChatGPT Invoice for %s %s", m.config.Name, invoiceDate)
	body := fmt.Sprintf("Please find attached the ChatGPT invoice for %s.\n\nThis email was automatically generated.", invoiceDate)
	msg := buildMessage(m.config.From, m.config.To, subject, body, filepath.Base(path), content)

	if err := m.send(msg); err != nil {
		m.logger.Warn("failed to send invoice email", "error", err)
		return false
	}

	m.logger.Info("invoice email sent", "to", m.config.To)
	return true
}

// buildMessage assembles a multipart/mixed message with a plain text body and
// a single base64-encoded PDF attachment
func buildMessage(from, to, subject, body, filename string, attachment []byte) string {
	boundary := generateBoundary()

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString(fmt.Sprintf("Content-Type: application/pdf; name=\"%s\"\r\n", filename))
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", filename))
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks(attachment))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return msg.String()
}

// send delivers the message over implicit TLS, falling back to STARTTLS for
// servers that reject a direct TLS handshake
func (m *Mailer) send(msg string) error {
	host := strings.Split(m.config.Server, ":")[0]
	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, host)

	conn, err := tls.Dial("tcp", m.config.Server, &tls.Config{ServerName: host})
	if err != nil {
		return m.sendWithSTARTTLS(host, auth, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return m.deliver(client, auth, msg)
}

func (m *Mailer) sendWithSTARTTLS(host string, auth smtp.Auth, msg string) error {
	client, err := smtp.Dial(m.config.Server)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("STARTTLS failed: %w", err)
	}

	return m.deliver(client, auth, msg)
}

func (m *Mailer) deliver(client *smtp.Client, auth smtp.Auth, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(m.config.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// generateBoundary returns a random MIME boundary
func generateBoundary() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "invoice-boundary-2f8a1c"
	}
	return "=_" + hex.EncodeToString(buf)
}

// encodeBase64WithLineBreaks wraps base64 output at 76 columns per RFC 2045
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	var sb strings.Builder
	for len(encoded) > 76 {
		sb.WriteString(encoded[:76])
		sb.WriteString("\r\n")
		encoded = encoded[76:]
	}
	sb.WriteString(encoded)

	return sb.String()
}
