// Package runner is the driver side of a parallel run. It opens a PID
// session, starts one copy of a command per worker with the worker's
// numbering in its environment, tracks each worker in the registry while it
// is alive, and stops the pool when the run is cancelled.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/partest/internal/config"
	"github.com/AbdelazizMoustafa10m/partest/internal/procgroup"
)

// killWaitDelay bounds how long Wait blocks on a killed worker's pipes.
const killWaitDelay = 3 * time.Second

// DefaultGracePeriod is how long workers get to exit after the stop signal
// before the driver kills their process groups.
const DefaultGracePeriod = 5 * time.Second

var (
	// ErrNoCommand is returned when Options.Command is empty.
	ErrNoCommand = errors.New("no command to run")
	// ErrNoWorkers is returned when Options.Workers is below one.
	ErrNoWorkers = errors.New("worker count must be at least 1")
)

// Options describes one parallel run.
type Options struct {
	// Command is the program and its arguments, run once per worker.
	Command []string
	// Workers is the resolved worker count.
	Workers int
	// FirstIsOne numbers the first worker "1" instead of "".
	FirstIsOne bool
	// StopSignal is broadcast to the pool on cancellation. Nil means SIGTERM.
	StopSignal os.Signal
	// GracePeriod is the wait between the stop signal and the kill.
	// Zero means DefaultGracePeriod.
	GracePeriod time.Duration
	// Dir is the workers' working directory. Empty means the current one.
	Dir string
	// Env is the base environment. Nil means os.Environ().
	Env []string
	// Stdout and Stderr receive every worker's output. Nil means the
	// driver's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// WorkerResult is the outcome of one worker.
type WorkerResult struct {
	// Index is the 0-based spawn position.
	Index int
	// Number is the TEST_ENV_NUMBER value the worker received.
	Number string
	PID    int
	// ExitCode is the worker's exit status, 128+signo when it died from a
	// signal, or -1 when it never started.
	ExitCode int
	Duration time.Duration
	// Err is set when the worker could not be started or waited on.
	Err error
}

// OK reports whether the worker ran and exited zero.
func (w WorkerResult) OK() bool {
	return w.Err == nil && w.ExitCode == 0
}

// Result is the outcome of a run.
type Result struct {
	Workers  []WorkerResult
	Duration time.Duration
}

// OK reports whether every worker succeeded.
func (r *Result) OK() bool {
	return len(r.Failed()) == 0
}

// Failed returns the workers that did not succeed, in spawn order.
func (r *Result) Failed() []WorkerResult {
	var failed []WorkerResult
	for _, w := range r.Workers {
		if !w.OK() {
			failed = append(failed, w)
		}
	}
	return failed
}

// Runner starts worker pools inside sessions owned by a procgroup.Controller.
type Runner struct {
	ctl    *procgroup.Controller
	logger *log.Logger
}

// New creates a Runner. logger may be nil.
func New(ctl *procgroup.Controller, logger *log.Logger) *Runner {
	return &Runner{ctl: ctl, logger: logger}
}

// Run spawns opts.Workers copies of opts.Command and waits for all of them.
//
// Worker failures are reported in the Result, not as an error. The error is
// non-nil when the options are invalid, the session cannot be opened, or
// the run was interrupted. The Result is nil unless workers were spawned;
// an interrupted run still returns its partial Result.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, ErrNoCommand
	}
	if opts.Workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, opts.Workers)
	}
	opts = withDefaults(opts)

	var res *Result
	err := r.ctl.WithSession(ctx, func(ctx context.Context, s *procgroup.Session) error {
		res = &Result{Workers: make([]WorkerResult, opts.Workers)}
		res.Duration = Delta(func() { r.runPool(ctx, s, opts, res) })
		return ctx.Err()
	})
	// res stays nil when the session could not be opened.
	return res, err
}

func withDefaults(opts Options) Options {
	if opts.StopSignal == nil {
		opts.StopSignal = syscall.SIGTERM
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return opts
}

// runPool fans out the workers and blocks until every one has been waited
// on. Cancelling ctx broadcasts the stop signal; workers still running
// after the grace period are killed.
func (r *Runner) runPool(ctx context.Context, s *procgroup.Session, opts Options, res *Result) {
	killCtx, kill := context.WithCancel(context.WithoutCancel(ctx))
	defer kill()

	var (
		mu       sync.Mutex
		stopping bool
	)
	stopWatch := context.AfterFunc(ctx, func() {
		mu.Lock()
		stopping = true
		mu.Unlock()

		r.info("stopping workers", "signal", procgroup.SignalName(opts.StopSignal), "grace", opts.GracePeriod)
		if err := s.Broadcast(opts.StopSignal); err != nil {
			r.warn("broadcast failed", "error", err)
		}
		time.AfterFunc(opts.GracePeriod, kill)
	})
	defer stopWatch()

	var g errgroup.Group
	for i := range opts.Workers {
		g.Go(func() error {
			env := config.NewWorkerEnv(i, opts.Workers, opts.FirstIsOne, s.Path())
			res.Workers[i] = r.runWorker(ctx, killCtx, s, opts, i, env, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return stopping
			})
			// Worker failures never abort the pool.
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) runWorker(
	ctx, killCtx context.Context,
	s *procgroup.Session,
	opts Options,
	index int,
	env config.WorkerEnv,
	stopping func() bool,
) WorkerResult {
	wr := WorkerResult{Index: index, Number: env.Number, ExitCode: -1}

	if err := ctx.Err(); err != nil {
		wr.Err = fmt.Errorf("not started: %w", context.Cause(ctx))
		return wr
	}

	cmd := exec.CommandContext(killCtx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(append([]string(nil), opts.Env...), env.Environ()...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	setProcGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		wr.Err = fmt.Errorf("starting worker %d: %w", index+1, err)
		return wr
	}
	wr.PID = cmd.Process.Pid

	reg := s.Registry()
	if err := reg.Add(wr.PID); err != nil {
		r.warn("registering worker failed", "worker", index+1, "pid", wr.PID, "error", err)
	}
	// A worker that registered after the broadcast would otherwise never
	// hear the stop signal.
	if stopping() {
		if err := cmd.Process.Signal(opts.StopSignal); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.warn("signalling late worker failed", "pid", wr.PID, "error", err)
		}
	}
	r.debug("worker started", "worker", index+1, "number", env.Number, "pid", wr.PID)

	waitErr := cmd.Wait()
	wr.Duration = time.Since(start)

	if err := reg.Remove(wr.PID); err != nil {
		r.warn("deregistering worker failed", "pid", wr.PID, "error", err)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		wr.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		wr.ExitCode = exitStatus(exitErr.ProcessState)
	default:
		if cmd.ProcessState != nil {
			wr.ExitCode = exitStatus(cmd.ProcessState)
		}
		wr.Err = fmt.Errorf("waiting for worker %d: %w", index+1, waitErr)
	}

	r.debug("worker finished", "worker", index+1, "pid", wr.PID, "exit_code", wr.ExitCode, "duration", wr.Duration)
	return wr
}

// Delta runs fn and returns how long it took on the monotonic clock.
func Delta(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

func (r *Runner) info(msg string, keyvals ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keyvals...)
	}
}

func (r *Runner) warn(msg string, keyvals ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, keyvals...)
	}
}

func (r *Runner) debug(msg string, keyvals ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, keyvals...)
	}
}
