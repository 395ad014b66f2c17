package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// BillCloserConfig holds configuration for the bill closer
type BillCloserConfig struct {
	// Interval is how often to look for bills past their closing date (default: 1h)
	Interval time.Duration
}

// DefaultBillCloserConfig returns sensible defaults
func DefaultBillCloserConfig() BillCloserConfig {
	return BillCloserConfig{Interval: time.Hour}
}

// BillCloser closes open bills once their period has ended, after a last
// refresh of their totals.
type BillCloser struct {
	repo   *storage.Repository
	config BillCloserConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewBillCloser(repo *storage.Repository, config BillCloserConfig, opts ...Option) *BillCloser {
	o := buildOptions(opts)
	if config.Interval <= 0 {
		config.Interval = DefaultBillCloserConfig().Interval
	}
	return &BillCloser{
		repo:   repo,
		config: config,
		now:    o.now,
	}
}

// CloseDue closes every open bill whose closing date is before now and
// returns how many were closed. One failing bill does not stop the others.
func (c *BillCloser) CloseDue(ctx context.Context, now time.Time) (int, error) {
	if c.repo == nil {
		return 0, fmt.Errorf("bill closer not properly initialized")
	}

	bills, err := c.repo.ListBillsByStatus(ctx, core.BillOpen, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list open bills: %w", err)
	}

	slog.InfoContext(ctx, "Closing bills past their closing date",
		"candidates", len(bills),
		"now", now.Format(time.RFC3339))

	closed := 0
	for _, bill := range bills {
		// The listing may be stale; closeBill re-reads the bill and skips it
		// when it was paid or closed in the meantime.
		var done bool
		err := c.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
			var err error
			_, done, err = closeBill(ctx, tx, bill.ID)
			return err
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to close bill",
				"bill_id", bill.ID,
				"error", err)
			continue
		}
		if !done {
			continue
		}
		closed++
		slog.InfoContext(ctx, "Closed bill",
			"bill_id", bill.ID,
			"card_id", bill.CreditCardID,
			"closing_date", bill.ClosingDate.Format("2006-01-02"))
	}

	slog.InfoContext(ctx, "Bill closing complete",
		"closed", closed,
		"total_checked", len(bills))

	return closed, nil
}

// Start runs CloseDue immediately and then on every interval. Returns an
// error if already running.
func (c *BillCloser) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("bill closer is already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.runLoop(ctx)

	slog.InfoContext(ctx, "Bill closer started", "interval", c.config.Interval)
	return nil
}

// Stop gracefully stops the closer and waits for the running pass.
func (c *BillCloser) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	close(c.stopCh)

	select {
	case <-c.doneCh:
		slog.InfoContext(ctx, "Bill closer stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Bill closer stop timed out")
		return ctx.Err()
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return nil
}

// IsRunning returns whether the closer loop is active
func (c *BillCloser) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *BillCloser) runLoop(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.pass(ctx)

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pass(ctx)
		}
	}
}

func (c *BillCloser) pass(ctx context.Context) {
	if _, err := c.CloseDue(ctx, c.now()); err != nil {
		slog.ErrorContext(ctx, "Bill closing pass failed", "error", err)
	}
}
