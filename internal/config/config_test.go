package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EMAIL", "user@example.com")
	t.Setenv("APP_PASSWORD", "app-password")
	t.Setenv("RECEIVER_EMAIL", "receiver@example.com")
	t.Setenv("NAME", "David Wahl")
	t.Setenv("FILENAME_NAME", "DavidWahl")
	t.Setenv("OPENAI_PAY_ID", "3cs6pP9gBe9frvOcOG")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "smtp.gmail.com:465", cfg.SMTPServer)
	assert.Empty(t, cfg.IMAPServer)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RequestWait)
	assert.Equal(t, 15*time.Second, cfg.RetryWait)
	assert.Equal(t, 500*time.Millisecond, cfg.DownloadPause)
	assert.Equal(t, "./data/invoices.db", cfg.LedgerPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IMAP_SERVER", "imap.example.com:993")
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("RETRY_WAIT", "5s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com:993", cfg.IMAPServer)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryWait)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, int64(-100200300), cfg.TelegramChatID)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("EMAIL", "user@example.com")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnsafeFilenameName(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FILENAME_NAME", "David Wahl")

	_, err := Load()
	assert.ErrorContains(t, err, "FILENAME_NAME")
}

func TestLoad_RejectsZeroAttempts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_ATTEMPTS", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "MAX_ATTEMPTS")
}
