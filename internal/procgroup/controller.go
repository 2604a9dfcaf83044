// Package procgroup owns the lifetime of a worker pool's PID registry and
// delivers signals to every registered worker.
//
// A session is scoped: WithSession creates a temporary PID file, publishes
// its path in PARALLEL_PID_FILE so children spawned inside the session
// inherit it, and removes both when the session ends. Teardown runs on
// normal return, on error, on panic, and when the process receives a
// termination signal.
//
// Usage:
//
//	ctl := procgroup.New(procgroup.WithLogger(logging.New("procgroup")))
//	err := ctl.WithSession(ctx, func(ctx context.Context, s *procgroup.Session) error {
//		// spawn workers; they find the registry via PARALLEL_PID_FILE
//		return s.Broadcast(syscall.SIGTERM)
//	})
package procgroup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/partest/internal/config"
	"github.com/AbdelazizMoustafa10m/partest/internal/pids"
)

var (
	// ErrNoSession is returned when no registry is reachable: no session is
	// active in this process and PARALLEL_PID_FILE is not set.
	ErrNoSession = errors.New("no pid session: PARALLEL_PID_FILE is not set")
	// ErrSessionActive is returned when WithSession is nested on one Controller.
	ErrSessionActive = errors.New("pid session already active")
	// ErrInterrupted is the cancellation cause when a termination signal
	// arrives during a session.
	ErrInterrupted = errors.New("session interrupted")
	// ErrUnknownSignal is returned by ParseSignal.
	ErrUnknownSignal = errors.New("unknown signal")
)

// Option configures a Controller.
type Option func(*Controller)

// WithTempDir sets the directory for the session's PID file. Empty means
// os.TempDir().
func WithTempDir(dir string) Option {
	return func(c *Controller) { c.tempDir = dir }
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSignals replaces the signals that interrupt a session (default
// SIGINT and SIGTERM).
func WithSignals(sigs ...os.Signal) Option {
	return func(c *Controller) { c.signals = sigs }
}

// WithExitFunc replaces os.Exit for the forced exit after a second signal.
func WithExitFunc(fn func(code int)) Option {
	return func(c *Controller) { c.exit = fn }
}

// Controller manages at most one session at a time.
type Controller struct {
	mu      sync.Mutex
	session *Session

	tempDir string
	signals []os.Signal
	logger  *log.Logger
	exit    func(code int)
}

// New creates a Controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is the handle for one scoped PID registry.
type Session struct {
	path     string
	registry *pids.Registry
	once     sync.Once
}

// Path returns the PID file path published in PARALLEL_PID_FILE.
func (s *Session) Path() string {
	return s.path
}

// Registry returns the session's PID registry.
func (s *Session) Registry() *pids.Registry {
	return s.registry
}

// Broadcast sends sig to every PID in the session's registry.
func (s *Session) Broadcast(sig os.Signal) error {
	return Broadcast(s.registry, sig)
}

// WithSession runs fn inside a new session and tears the session down on
// every exit path.
//
// The first interrupt signal cancels fn's context with ErrInterrupted as the
// cause and WithSession returns an error wrapping ErrInterrupted once fn
// returns. A second signal means the graceful path is stuck: the session is
// torn down immediately and the process exits with 128+signo.
//
// The first signal does not end the process by itself. fn must watch ctx;
// a body that ignores it keeps running, with the session still open, until
// it returns or a second signal arrives.
func (c *Controller) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) (err error) {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer c.teardown(s)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sigCh := make(chan os.Signal, 2)
	if len(c.signals) > 0 {
		signal.Notify(sigCh, c.signals...)
	}
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	var caught os.Signal

	go func() {
		defer close(watcherDone)
		for {
			select {
			case sig := <-sigCh:
				if caught == nil {
					caught = sig
					c.warn("signal received, stopping session", "signal", SignalName(sig))
					cancel(fmt.Errorf("%w by %s", ErrInterrupted, SignalName(sig)))
					continue
				}
				c.warn("second signal received, exiting", "signal", SignalName(sig))
				c.teardown(s)
				c.exit(exitCode(sig))
				return
			case <-stop:
				return
			}
		}
	}()

	defer func() {
		signal.Stop(sigCh)
		close(stop)
		<-watcherDone
		if caught == nil {
			return
		}
		cause := context.Cause(ctx)
		switch {
		case err == nil:
			err = cause
		case !errors.Is(err, ErrInterrupted):
			err = errors.Join(cause, err)
		}
	}()

	return fn(ctx, s)
}

// open creates the PID file, publishes its path, and records the session.
func (c *Controller) open() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil, ErrSessionActive
	}

	f, err := os.CreateTemp(c.tempDir, "partest-pidfile-*")
	if err != nil {
		return nil, fmt.Errorf("creating pid file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path) //nolint:errcheck
		return nil, fmt.Errorf("closing pid file: %w", err)
	}

	if err := os.Setenv(config.EnvPidFile, path); err != nil {
		os.Remove(path) //nolint:errcheck
		return nil, fmt.Errorf("publishing %s: %w", config.EnvPidFile, err)
	}

	// The registry exists before fn runs so every spawned worker and
	// every goroutine in fn sees the same handle.
	s := &Session{path: path, registry: pids.New(path)}
	c.session = s
	c.debug("pid session opened", "path", path)
	return s, nil
}

// teardown clears the environment binding, forgets the session, and removes
// the PID file. It is safe to call more than once.
func (c *Controller) teardown(s *Session) {
	s.once.Do(func() {
		if v, ok := os.LookupEnv(config.EnvPidFile); ok && v == s.path {
			os.Unsetenv(config.EnvPidFile) //nolint:errcheck
		}

		c.mu.Lock()
		if c.session == s {
			c.session = nil
		}
		c.mu.Unlock()

		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.warn("removing pid file failed", "path", s.path, "error", err)
			return
		}
		c.debug("pid session closed", "path", s.path)
	})
}

// Registry returns the active session's registry or, outside a session,
// a registry bound to PARALLEL_PID_FILE. Workers use this to reach the
// pool their driver created.
func (c *Controller) Registry() (*pids.Registry, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		return s.registry, nil
	}
	if path, ok := os.LookupEnv(config.EnvPidFile); ok && path != "" {
		return pids.New(path), nil
	}
	return nil, ErrNoSession
}

// Broadcast sends sig to every PID in the current registry.
func (c *Controller) Broadcast(sig os.Signal) error {
	reg, err := c.Registry()
	if err != nil {
		return err
	}
	return Broadcast(reg, sig)
}

// Lister is the read side of a PID registry.
type Lister interface {
	All() ([]int, error)
}

// sendSignal is swapped in tests to simulate delivery failures.
var sendSignal = signalPID

// Broadcast sends sig to every PID in reg, in registry order. It does not
// wait for the targets to exit. PIDs that are already gone or that this
// user may not signal are skipped silently; any other failure is collected
// and returned after the remaining PIDs have been tried.
func Broadcast(reg Lister, sig os.Signal) error {
	all, err := reg.All()
	if err != nil {
		return fmt.Errorf("listing pids: %w", err)
	}

	var errs []error
	for _, pid := range all {
		if err := sendSignal(pid, sig); err != nil {
			if isGone(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("signalling pid %d with %s: %w", pid, SignalName(sig), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) warn(msg string, keyvals ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keyvals...)
	}
}

func (c *Controller) debug(msg string, keyvals ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keyvals...)
	}
}
