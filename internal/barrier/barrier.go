// Package barrier lets a worker wait until its siblings have finished
// before running end-of-run work that must happen once.
//
// The only implementation, Poller, re-reads the PID registry until it holds
// at most one entry. That is a heuristic, not a linearizable barrier: two
// workers can both observe a count of one, and a sibling that has not yet
// registered is invisible. There is also no built-in timeout; a sibling
// that never exits keeps Wait blocked until ctx is cancelled.
package barrier

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/partest/internal/identity"
)

// DefaultInterval is the delay between registry checks.
const DefaultInterval = time.Second

// Barrier blocks until the rest of the pool has finished.
type Barrier interface {
	Wait(ctx context.Context) error
}

// Counter reports how many workers are still registered.
type Counter interface {
	Count() (int, error)
}

// Poller is a Barrier that polls a Counter.
type Poller struct {
	counter  Counter
	identity identity.Identity
	interval time.Duration
	logger   *log.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the polling interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(l *log.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller returns a Poller for the worker described by id.
func NewPoller(counter Counter, id identity.Identity, opts ...Option) *Poller {
	p := &Poller{
		counter:  counter,
		identity: id,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait returns immediately when the process is not part of a parallel run.
// Otherwise it checks the registry count and sleeps between checks until
// the count drops to one or less.
func (p *Poller) Wait(ctx context.Context) error {
	if !p.identity.Parallel() {
		return nil
	}

	start := time.Now()
	for polls := 0; ; polls++ {
		n, err := p.counter.Count()
		if err != nil {
			return fmt.Errorf("counting running workers: %w", err)
		}
		if n <= 1 {
			if p.logger != nil && polls > 0 {
				p.logger.Debug("siblings finished", "waited", time.Since(start), "polls", polls)
			}
			return nil
		}
		if p.logger != nil {
			p.logger.Debug("waiting for siblings", "running", n)
		}
		if err := sleepWithContext(ctx, p.interval); err != nil {
			return err
		}
	}
}

// WaitForSiblings waits on the registry using the current process's
// environment for identity and the default interval. It blocks until the
// registry drains or ctx is done.
func WaitForSiblings(ctx context.Context, counter Counter) error {
	return NewPoller(counter, identity.FromEnv(nil)).Wait(ctx)
}

// sleepWithContext sleeps for d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
