package report

import (
	"context"
	"sync"
	"time"
)

const DefaultPrefetchMaxWait = 2 * time.Second

// Prefetcher runs at most one low-priority job at a time. A job starts once
// the primary work signals idle or MaxWait elapses, whichever comes first.
// Scheduling a new job cancels the pending or running one.
type Prefetcher struct {
	MaxWait time.Duration

	mu     sync.Mutex
	base   context.Context
	stop   context.CancelFunc
	cancel context.CancelFunc
	closed bool
}

func NewPrefetcher(maxWait time.Duration) *Prefetcher {
	if maxWait <= 0 {
		maxWait = DefaultPrefetchMaxWait
	}
	base, stop := context.WithCancel(context.Background())
	return &Prefetcher{
		MaxWait: maxWait,
		base:    base,
		stop:    stop,
	}
}

// Schedule queues run. The returned channel is closed when run returns or the
// job is cancelled before it started.
func (p *Prefetcher) Schedule(idle <-chan struct{}, run func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(done)
		return done
	}
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(p.base)
	p.cancel = cancel
	maxWait := p.MaxWait
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		timer := time.NewTimer(maxWait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-idle:
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		run(ctx)
	}()
	return done
}

// Cancel stops the pending or running job, if any.
func (p *Prefetcher) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Prefetcher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.stop()
}
