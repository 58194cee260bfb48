package session

import (
	"context"
	"time"
)

// TickFunc runs one poll. Returning true ends polling.
type TickFunc func(ctx context.Context) (done bool)

// Poller runs a TickFunc at a fixed interval until it reports done or is
// stopped.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartPoller starts polling. The first tick fires one interval after start.
func StartPoller(parent context.Context, interval time.Duration, tick TickFunc) *Poller {
	ctx, cancel := context.WithCancel(parent)
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				if tick(ctx) {
					return
				}
			}
		}
	}()

	return p
}

// Stop cancels the poller and waits for its goroutine to exit. After Stop
// returns no tick is running and none will start. Stop is idempotent.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Done is closed once the poller goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
