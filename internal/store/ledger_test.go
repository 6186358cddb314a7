package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidwahl/chatgpt-invoice/pkg/models"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoices.db")
	l, err := Open(context.Background(), path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RecordAndRecent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	l.Record(ctx, models.DownloadRecord{
		InvoiceID:    "in_1",
		InvoiceDate:  "2024-02-15",
		Filename:     "OpenAI_2024-02-15_DavidWahl.pdf",
		Emailed:      true,
		DownloadedAt: base,
	})
	l.Record(ctx, models.DownloadRecord{
		InvoiceID:    "in_2",
		InvoiceDate:  "2024-03-15",
		Filename:     "OpenAI_2024-03-15_DavidWahl.pdf",
		Emailed:      false,
		DownloadedAt: base.Add(time.Hour),
	})

	records, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "in_2", records[0].InvoiceID, "newest record comes first")
	assert.Equal(t, "OpenAI_2024-03-15_DavidWahl.pdf", records[0].Filename)
	assert.False(t, records[0].Emailed)
	assert.Equal(t, "in_1", records[1].InvoiceID)
	assert.True(t, records[1].Emailed)
}

func TestLedger_RecentLimit(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Record(ctx, models.DownloadRecord{
			InvoiceID:    "in_x",
			InvoiceDate:  "2024-01-01",
			Filename:     "OpenAI_2024-01-01_DavidWahl.pdf",
			DownloadedAt: time.Now().UTC(),
		})
	}

	records, err := l.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestLedger_RecentEmpty(t *testing.T) {
	l := openTestLedger(t)

	records, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
