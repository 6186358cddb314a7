package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Session is a headless browser scoped to a single top-level operation.
// Callers must Close it on every exit path; an unreleased session leaks a
// Chrome process.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger
}

// Options for launching a browser session
type Options struct {
	Headless bool
	Timeout  time.Duration // overall budget for the operation the session serves
}

// NewSession launches a Chrome instance and verifies it responds
func NewSession(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if opts.Timeout > 0 {
		// Bound the whole session; individual waits layer shorter deadlines
		// on top via timed().
		var timeoutCancel context.CancelFunc
		browserCtx, timeoutCancel = context.WithTimeout(browserCtx, opts.Timeout)
		inner := browserCancel
		browserCancel = func() {
			timeoutCancel()
			inner()
		}
	}

	// First Run starts the browser process
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Session{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      logger.With("component", "browser"),
	}, nil
}

// Close releases the browser and its OS process
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
	s.logger.Debug("browser closed")
}

// timed runs actions under a deadline without tearing down the session when
// the deadline expires; only the current wait is abandoned.
func (s *Session) timed(timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}
