package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/partest/internal/config"
	"github.com/AbdelazizMoustafa10m/partest/internal/logging"
	"github.com/AbdelazizMoustafa10m/partest/internal/procgroup"
	"github.com/AbdelazizMoustafa10m/partest/internal/runner"
)

// runFlags holds the flag values for "partest run".
type runFlags struct {
	processes  string
	multiply   string
	firstIsOne bool
	signal     *signalValue
	grace      time.Duration
	tmpDir     string
}

var runOpts = runFlags{signal: newSignalValue(nil)}

var runCmd = &cobra.Command{
	Use:   "run [flags] -- COMMAND [ARGS...]",
	Short: "Run a command once per worker",
	Long: `Run COMMAND in parallel, once per worker. Each copy runs in its own
process group with these variables in its environment:

  TEST_ENV_NUMBER        worker number ("" for the first worker unless --first-is-1)
  PARALLEL_TEST_GROUPS   total number of workers
  PARALLEL_PID_FILE      path of the shared PID registry

The worker count comes from -n, PARALLEL_TEST_PROCESSORS, partest.toml, or
the number of CPUs, in that order, scaled by -m / PARALLEL_TEST_MULTIPLY_PROCESSES.

Interrupting partest sends the stop signal to every worker and kills those
still running after the grace period. A second interrupt exits immediately.`,
	Example: `  partest run -n 4 -- go test ./...
  partest run -m 1.5 --signal INT -- bundle exec rspec`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd, args)
	},
}

func init() {
	f := runCmd.Flags()
	f.SetInterspersed(false)
	f.StringVarP(&runOpts.processes, "processes", "n", "", "Number of workers (env: PARALLEL_TEST_PROCESSORS)")
	f.StringVarP(&runOpts.multiply, "multiply", "m", "", "Worker count multiplier (env: PARALLEL_TEST_MULTIPLY_PROCESSES)")
	f.BoolVar(&runOpts.firstIsOne, "first-is-1", false, `Number the first worker "1" instead of "" (env: PARTEST_FIRST_IS_1)`)
	f.Var(runOpts.signal, "signal", "Signal sent to workers on interrupt (env: PARTEST_STOP_SIGNAL)")
	f.DurationVar(&runOpts.grace, "grace", 0, "Time workers get to exit after the stop signal")
	f.StringVar(&runOpts.tmpDir, "tmpdir", "", "Directory for the PID registry file (env: PARTEST_TMPDIR)")
	rootCmd.AddCommand(runCmd)
}

// runOverrides turns the flags the user set into config overrides.
func runOverrides(cmd *cobra.Command) *config.CLIOverrides {
	o := &config.CLIOverrides{}
	f := cmd.Flags()
	if f.Changed("first-is-1") {
		o.FirstIsOne = &runOpts.firstIsOne
	}
	if f.Changed("signal") {
		name := runOpts.signal.String()
		o.StopSignal = &name
	}
	if f.Changed("grace") {
		o.GracePeriod = &runOpts.grace
	}
	if f.Changed("tmpdir") {
		o.TempDir = &runOpts.tmpDir
	}
	return o
}

func runRun(cmd *cobra.Command, args []string) error {
	lc, err := loadConfig(runOverrides(cmd))
	if err != nil {
		return err
	}
	if result := config.Validate(lc.Config, lc.meta); result.HasErrors() {
		printValidationResult(cmd.ErrOrStderr(), result)
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
	}

	workers, err := lc.resolver().WorkerCount(runOpts.processes, runOpts.multiply)
	if err != nil {
		return err
	}
	stop, err := procgroup.ParseSignal(lc.Config.Session.StopSignal)
	if err != nil {
		return fmt.Errorf("session.stop_signal: %w", err)
	}

	logger := logging.New("run")
	logger.Debug("starting run", "workers", workers, "command", args, "stop_signal", procgroup.SignalName(stop))

	ctl := procgroup.New(
		procgroup.WithTempDir(lc.Config.Session.TempDir),
		procgroup.WithLogger(logging.New("procgroup")),
	)
	r := runner.New(ctl, logging.New("runner"))
	res, runErr := r.Run(cmd.Context(), runner.Options{
		Command:     args,
		Workers:     workers,
		FirstIsOne:  lc.Config.Workers.FirstIsOne,
		StopSignal:  stop,
		GracePeriod: lc.Config.Session.GracePeriod,
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
	})
	if res != nil && !flagQuiet {
		printRunSummary(cmd.ErrOrStderr(), res)
	}

	switch {
	case errors.Is(runErr, procgroup.ErrInterrupted), errors.Is(runErr, context.Canceled):
		return &exitError{code: 130, err: runErr}
	case runErr != nil:
		return runErr
	case !res.OK():
		return &exitError{code: 1}
	}
	return nil
}

// printRunSummary writes one line per worker and a totals line.
func printRunSummary(out io.Writer, res *runner.Result) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, styleHeader.Render("Workers"))
	for _, w := range res.Workers {
		status := styleSuccess.Render("ok")
		switch {
		case w.Err != nil:
			status = styleErrorLbl.Render("error: " + w.Err.Error())
		case w.ExitCode != 0:
			status = styleErrorLbl.Render(fmt.Sprintf("exit %d", w.ExitCode))
		}
		number := w.Number
		if number == "" {
			number = `""`
		}
		fmt.Fprintf(out, "  %-4d %s %-8s %s %s\n",
			w.Index+1,
			styleDim.Render("TEST_ENV_NUMBER="+fmt.Sprintf("%-4s", number)),
			fmtPID(w.PID),
			fmt.Sprintf("%-10s", w.Duration.Round(time.Millisecond)),
			status,
		)
	}

	failed := len(res.Failed())
	total := fmt.Sprintf("%d worker(s), %d failed in %s", len(res.Workers), failed, res.Duration.Round(time.Millisecond))
	if failed > 0 {
		fmt.Fprintln(out, styleErrorLbl.Render(total))
	} else {
		fmt.Fprintln(out, styleSuccess.Render(total))
	}
}

func fmtPID(pid int) string {
	if pid == 0 {
		return "-"
	}
	return fmt.Sprintf("pid %d", pid)
}
