package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Mailbox account used both for IMAP polling and SMTP sending
	Email       string `env:"EMAIL,required"`
	AppPassword string `env:"APP_PASSWORD,required"`
	IMAPServer  string `env:"IMAP_SERVER"` // host:port, resolved from the address when empty
	SMTPServer  string `env:"SMTP_SERVER" envDefault:"smtp.gmail.com:465"`

	// Notification
	ReceiverEmail string `env:"RECEIVER_EMAIL,required"`
	Name          string `env:"NAME,required"`          // display name used in email subjects
	FilenameName  string `env:"FILENAME_NAME,required"` // token used in PDF filenames, no spaces

	// OpenAI payment portal slug, the XXXX part of pay.openai.com/p/login/XXXX
	PortalSlug string `env:"OPENAI_PAY_ID,required"`

	// Telegram notification (optional)
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Download ledger
	LedgerPath string `env:"LEDGER_PATH" envDefault:"./data/invoices.db"`

	// Retry policy
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"10"`
	RequestWait   time.Duration `env:"REQUEST_WAIT" envDefault:"30s"` // wait after requesting a new link
	RetryWait     time.Duration `env:"RETRY_WAIT" envDefault:"15s"`   // wait between empty mailbox polls
	DownloadPause time.Duration `env:"DOWNLOAD_PAUSE" envDefault:"500ms"`

	// Timeouts
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	BrowserTimeout  time.Duration `env:"BROWSER_TIMEOUT" envDefault:"60s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// TelegramEnabled returns true if the optional Telegram channel is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if strings.ContainsAny(cfg.FilenameName, " /\\") {
		return nil, fmt.Errorf("FILENAME_NAME must not contain spaces or path separators, got %q", cfg.FilenameName)
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}
