package notify

import "context"

// Dispatcher fans a downloaded-invoice event out to every configured channel.
// Email is the primary channel; Telegram is a side note. Either may be nil.
type Dispatcher struct {
	mailer   *Mailer
	telegram *Telegram
}

// NewDispatcher creates a dispatcher over the given channels
func NewDispatcher(mailer *Mailer, telegram *Telegram) *Dispatcher {
	return &Dispatcher{mailer: mailer, telegram: telegram}
}

// InvoiceDownloaded notifies all channels. The return value reports whether
// the invoice email went out.
func (d *Dispatcher) InvoiceDownloaded(ctx context.Context, path, invoiceDate string) bool {
	emailed := false
	if d.mailer != nil {
		emailed = d.mailer.SendInvoice(ctx, path, invoiceDate)
	}
	if d.telegram != nil {
		d.telegram.InvoiceDownloaded(ctx, path, invoiceDate)
	}
	return emailed
}
