package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/davidwahl/chatgpt-invoice/internal/browser"
	"github.com/davidwahl/chatgpt-invoice/internal/config"
	"github.com/davidwahl/chatgpt-invoice/internal/download"
	"github.com/davidwahl/chatgpt-invoice/internal/mailbox"
	"github.com/davidwahl/chatgpt-invoice/internal/notify"
	"github.com/davidwahl/chatgpt-invoice/internal/portal"
	"github.com/davidwahl/chatgpt-invoice/internal/runner"
	"github.com/davidwahl/chatgpt-invoice/internal/store"
)

var (
	flagRequest     bool
	flagDownloadDir string
	flagNoHeadless  bool
	flagAllInvoices bool
	flagListOnly    bool
)

var rootCmd = &cobra.Command{
	Use:   "invoice-downloader",
	Short: "Downloads OpenAI invoices from the billing portal and emails them",
	Long: "Requests a one-time billing-portal login link, waits for it in the " +
		"configured mailbox, retrieves the invoice list, downloads the PDFs and " +
		"emails each one to the configured recipient.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().BoolVar(&flagRequest, "request", false, "Force requesting a new login link instead of checking emails first")
	rootCmd.Flags().StringVar(&flagDownloadDir, "download-dir", "invoices", "Directory to save downloaded invoices")
	rootCmd.Flags().BoolVar(&flagNoHeadless, "no-headless", false, "Run in visible browser mode")
	rootCmd.Flags().BoolVar(&flagAllInvoices, "all-invoices", false, "Download all invoices instead of just the most recent one")
	rootCmd.Flags().BoolVar(&flagListOnly, "list-only", false, "List available invoices without downloading")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting OpenAI invoice downloader")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve the IMAP endpoint from the account address unless pinned
	imapServer := cfg.IMAPServer
	if imapServer == "" {
		imapServer, err = mailbox.ResolveIMAPServer(cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to resolve IMAP server: %w", err)
		}
		logger.Info("resolved IMAP server", "server", imapServer)
	}

	mailboxClient := mailbox.NewClient(mailbox.ClientConfig{
		Email:       cfg.Email,
		Password:    cfg.AppPassword,
		Server:      imapServer,
		DialTimeout: cfg.IMAPDialTimeout,
	}, logger)

	portalClient := portal.NewClient(portal.Config{
		Email:   cfg.Email,
		Slug:    cfg.PortalSlug,
		Timeout: cfg.HTTPTimeout,
	}, logger)

	browserOps := browser.NewOps(browser.OpsConfig{
		LoginPageURL: "https://pay.openai.com/p/login/" + cfg.PortalSlug,
		Email:        cfg.Email,
		Headless:     !flagNoHeadless,
		Timeout:      cfg.BrowserTimeout,
	}, logger)

	// The ledger is bookkeeping; a broken database must not stop the run
	var ledger download.Ledger
	if l, err := store.Open(ctx, cfg.LedgerPath, logger); err != nil {
		logger.Warn("download ledger unavailable, continuing without it", "error", err)
	} else {
		defer l.Close()
		ledger = l
	}

	mailer := notify.NewMailer(notify.MailerConfig{
		Server:   cfg.SMTPServer,
		Username: cfg.Email,
		Password: cfg.AppPassword,
		From:     cfg.Email,
		To:       cfg.ReceiverEmail,
		Name:     cfg.Name,
	}, logger)

	var telegram *notify.Telegram
	if cfg.TelegramEnabled() {
		telegram, err = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram notifications unavailable", "error", err)
		} else {
			logger.Info("telegram notifications enabled", "chat_id", cfg.TelegramChatID)
		}
	}

	downloader := download.New(download.Config{
		FilenameName: cfg.FilenameName,
		Pause:        cfg.DownloadPause,
		HTTPTimeout:  cfg.HTTPTimeout,
	}, notify.NewDispatcher(mailer, telegram), ledger, logger)

	r := runner.New(runner.Config{
		MaxAttempts:  cfg.MaxAttempts,
		RequestWait:  cfg.RequestWait,
		RetryWait:    cfg.RetryWait,
		ForceRequest: flagRequest,
		DownloadDir:  flagDownloadDir,
		AllInvoices:  flagAllInvoices,
		ListOnly:     flagListOnly,
	}, mailboxClient, portalClient, browserOps, downloader, logger)

	if !r.Run(ctx) {
		// Exhausting the attempt budget is a normal "no result" outcome
		logger.Warn("run finished without retrieving invoices")
	}

	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
