package events

import (
	"context"
	"errors"
	"time"
)

// Cleaner periodically deletes processed records older than the
// retention window. Pending and failed records are never touched.
type Cleaner struct {
	store Store
	opts  CleanerOptions
}

func NewCleaner(store Store, opts CleanerOptions) (*Cleaner, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	opts.setDefaults()
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}
	return &Cleaner{store: store, opts: opts}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}
	if !c.opts.Enabled {
		return nil
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := c.CleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).Warn("events: cleaner tick failed")
		}
	}
}

func (c *Cleaner) CleanOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-c.opts.Retention)

	deleted, err := c.store.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		c.opts.Logger.WithField("deleted", deleted).Debug("events: cleaned processed records")
	}
	return nil
}
