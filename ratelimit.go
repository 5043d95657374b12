package main

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum interval between external calls. Each
// provider client and each resolver invocation owns its own pacer, so
// concurrent runs keep independent rate contexts.
type pacer struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval}
}

// wait blocks until at least the configured interval has passed since
// the previous call, or the context is cancelled.
func (p *pacer) wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	for {
		elapsed := time.Since(p.last)
		if elapsed >= p.interval {
			break
		}

		// Another waiter may be admitted while the lock is released,
		// so the interval is re-checked on every pass.
		remaining := p.interval - elapsed
		p.mu.Unlock()

		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return ctx.Err()
		}

		p.mu.Lock()
	}
	p.last = time.Now()
	p.mu.Unlock()
	return nil
}
