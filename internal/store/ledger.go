package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS download_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_id TEXT NOT NULL,
    invoice_date TEXT NOT NULL,
    filename TEXT NOT NULL,
    emailed BOOLEAN DEFAULT false,
    downloaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_filename ON download_records(filename);
CREATE INDEX IF NOT EXISTS idx_records_date ON download_records(invoice_date);
`

// Ledger is an append-only record of download runs. It never gates a
// download; the file on disk is the authoritative de-duplication signal.
type Ledger struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the sqlite ledger at path
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Ledger{
		db:     db,
		logger: logger.With("component", "ledger"),
	}, nil
}

// Close closes the underlying database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends a download record. Ledger writes are best-effort
// bookkeeping; failures are logged, never propagated.
func (l *Ledger) Record(ctx context.Context, rec models.DownloadRecord) {
	query := `
		INSERT INTO download_records (invoice_id, invoice_date, filename, emailed, downloaded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query,
		rec.InvoiceID,
		rec.InvoiceDate,
		rec.Filename,
		rec.Emailed,
		rec.DownloadedAt,
	)
	if err != nil {
		l.logger.Warn("failed to record download", "filename", rec.Filename, "error", err)
	}
}

// Recent returns the most recent download records, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]models.DownloadRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []models.DownloadRecord
	query := `SELECT * FROM download_records ORDER BY downloaded_at DESC, id DESC LIMIT ?`
	if err := l.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
