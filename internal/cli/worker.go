package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/partest/internal/barrier"
	"github.com/AbdelazizMoustafa10m/partest/internal/config"
	"github.com/AbdelazizMoustafa10m/partest/internal/identity"
	"github.com/AbdelazizMoustafa10m/partest/internal/logging"
	"github.com/AbdelazizMoustafa10m/partest/internal/pids"
	"github.com/AbdelazizMoustafa10m/partest/internal/procgroup"
)

// Commands in this file run inside a worker and find the pool through the
// environment the driver set up.

var firstCmd = &cobra.Command{
	Use:   "first",
	Short: "Exit 0 if this is the first worker",
	Long: `Exit 0 when the calling process is the first worker of the run (or not
part of a parallel run at all), 1 otherwise. Intended for shell hooks:

  partest first && ./prepare-shared-fixtures`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exitUnless(identity.IsFirstWorker())
	},
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Exit 0 if this is the last worker",
	Long: `Exit 0 when the calling process is the last-numbered worker of the run
(or not part of a parallel run at all), 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exitUnless(identity.IsLastWorker())
	},
}

func exitUnless(ok bool) error {
	if ok {
		return nil
	}
	return &exitError{code: 1}
}

var waitInterval time.Duration

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until every other worker has finished",
	Long: `Poll the PID registry until at most one worker is still registered.
Returns immediately outside a parallel run.

The check is a heuristic: two workers can both see themselves as the last
one, and a worker that has not registered yet is not waited for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := identity.FromEnv(nil)
		if !id.Parallel() {
			return nil
		}

		var overrides config.CLIOverrides
		if cmd.Flags().Changed("interval") {
			overrides.PollInterval = &waitInterval
		}
		lc, err := loadConfig(&overrides)
		if err != nil {
			return err
		}
		reg, err := envRegistry()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := barrier.NewPoller(reg, id,
			barrier.WithInterval(lc.Config.Session.PollInterval),
			barrier.WithLogger(logging.New("barrier")),
		)
		return p.Wait(ctx)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [PID]",
	Short: "Add a PID to the worker registry",
	Long: `Append PID to the registry named by PARALLEL_PID_FILE. Without an
argument the calling process (the parent of partest) is registered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid := os.Getppid()
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			pid = n
		}
		reg, err := envRegistry()
		if err != nil {
			return err
		}
		return reg.Add(pid)
	},
}

var (
	pidsCount bool
	pidsJSON  bool
)

var pidsCmd = &cobra.Command{
	Use:   "pids",
	Short: "List registered worker PIDs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := envRegistry()
		if err != nil {
			return err
		}
		all, err := reg.All()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case pidsCount:
			fmt.Fprintln(out, len(all))
		case pidsJSON:
			enc := json.NewEncoder(out)
			return enc.Encode(all)
		default:
			for _, pid := range all {
				fmt.Fprintln(out, pid)
			}
		}
		return nil
	},
}

var stopSignal = newSignalValue(syscall.SIGTERM)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Send a signal to every registered worker",
	Long: `Send the signal to every PID in the registry, in registration order,
without waiting for the workers to exit. Workers that are already gone are
skipped. When called from inside a worker, that worker is signalled too.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl := procgroup.New(procgroup.WithLogger(logging.New("procgroup")))
		return ctl.Broadcast(stopSignal.Signal())
	},
}

var (
	countProcesses string
	countMultiply  string
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the resolved worker count",
	Long: `Print the number of workers a run would start, after applying -n,
PARALLEL_TEST_PROCESSORS, partest.toml and the CPU count, scaled by the
multiplier.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := loadConfig(nil)
		if err != nil {
			return err
		}
		r := lc.resolver()
		n, nSrc, err := r.Count(countProcesses)
		if err != nil {
			return err
		}
		m, mSrc, err := r.Multiplier(countMultiply)
		if err != nil {
			return err
		}
		logging.New("config").Debug("resolved worker count",
			"processes", n, "processes_source", nSrc,
			"multiply", m, "multiply_source", mSrc)
		fmt.Fprintln(cmd.OutOrStdout(), config.ApplyMultiplier(n, m))
		return nil
	},
}

// envRegistry returns the registry published by the driver.
func envRegistry() (*pids.Registry, error) {
	return procgroup.New().Registry()
}

func init() {
	waitCmd.Flags().DurationVar(&waitInterval, "interval", barrier.DefaultInterval, "Delay between registry checks")

	pidsCmd.Flags().BoolVar(&pidsCount, "count", false, "Print only the number of registered PIDs")
	pidsCmd.Flags().BoolVar(&pidsJSON, "json", false, "Print the PIDs as a JSON array")
	pidsCmd.MarkFlagsMutuallyExclusive("count", "json")

	stopCmd.Flags().Var(stopSignal, "signal", "Signal to send")

	countCmd.Flags().StringVarP(&countProcesses, "processes", "n", "", "Explicit worker count (env: PARALLEL_TEST_PROCESSORS)")
	countCmd.Flags().StringVarP(&countMultiply, "multiply", "m", "", "Worker count multiplier (env: PARALLEL_TEST_MULTIPLY_PROCESSES)")

	rootCmd.AddCommand(firstCmd, lastCmd, waitCmd, registerCmd, pidsCmd, stopCmd, countCmd)
}
