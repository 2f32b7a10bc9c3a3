// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package actionlog

import (
	"context"
	"sync"
	"time"

	"grimm.is/wlanguard/internal/logging"
)

// Flusher periodically drains a Log into a Store. Entries that fail to save
// are kept and retried on the next tick.
type Flusher struct {
	log      *Log
	store    Store
	interval time.Duration
	logger   *logging.Logger

	// Backlog, if set, receives the number of unsaved entries after every flush.
	Backlog func(pending int)

	mu      sync.Mutex
	pending []Entry

	stop chan struct{}
	done chan struct{}
}

// NewFlusher creates a flusher. It does nothing until Start.
func NewFlusher(l *Log, store Store, interval time.Duration, logger *logging.Logger) *Flusher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = logging.WithComponent("actionlog")
	}
	return &Flusher{log: l, store: store, interval: interval, logger: logger}
}

// Start runs the flush loop until ctx is cancelled or Stop is called.
func (f *Flusher) Start(ctx context.Context) {
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := f.Flush(ctx); err != nil {
					f.logger.Warn("action log flush failed", "error", err, "pending", f.Pending())
				}
			case <-f.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Flush drains the log and saves everything pending.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = append(f.pending, f.log.Drain()...)
	defer func() {
		if f.Backlog != nil {
			f.Backlog(len(f.pending))
		}
	}()
	if len(f.pending) == 0 {
		return nil
	}
	if err := f.store.Save(ctx, f.pending); err != nil {
		return err
	}
	f.logger.Debug("action log flushed", "entries", len(f.pending))
	f.pending = nil
	return nil
}

// Pending returns how many drained entries are waiting to be saved.
func (f *Flusher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Stop ends the loop and performs a final flush.
func (f *Flusher) Stop(ctx context.Context) error {
	if f.stop != nil {
		close(f.stop)
		<-f.done
		f.stop = nil
	}
	return f.Flush(ctx)
}
