package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-telegram/bot"
)

// Telegram posts a short note to a chat after each download. Optional
// channel; construction fails only on a bad token.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates a new Telegram notifier
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chatID: chatID,
		logger: logger.With("component", "telegram"),
	}, nil
}

// InvoiceDownloaded announces a downloaded invoice. Failures are logged only.
func (t *Telegram) InvoiceDownloaded(ctx context.Context, path, invoiceDate string) {
	text := fmt.Sprintf("Invoice for %s downloaded: %s", invoiceDate, filepath.Base(path))

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		t.logger.Warn("failed to send telegram notification", "error", err)
		return
	}

	t.logger.Info("telegram notification sent", "chat_id", t.chatID)
}
