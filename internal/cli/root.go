package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/partest/internal/logging"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagNoColor bool
)

// rootCmd is the base command for partest.
var rootCmd = &cobra.Command{
	Use:   "partest",
	Short: "Coordinate a pool of parallel test worker processes",
	Long: `partest runs a command once per worker, hands each copy its worker number
through the environment, and keeps a shared PID registry for the pool.

Workers use the same binary to ask whether they are the first or last worker,
to wait for their siblings, and to stop the whole pool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := logging.OptionsFromEnv(nil)
		if cmd.Flags().Changed("verbose") {
			opts.Verbose = flagVerbose
		}
		if cmd.Flags().Changed("quiet") {
			opts.Quiet = flagQuiet
		}
		logging.Setup(opts)

		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("PARTEST_NO_COLOR") != "") {
			flagNoColor = true
		}
		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}
		return nil
	},
}

func init() {
	addPersistentFlags(rootCmd,
		&flagVerbose, &flagQuiet, &flagConfig, &flagDir, &flagNoColor)
}

// addPersistentFlags registers the global flags on cmd, bound to the given
// variables.
func addPersistentFlags(cmd *cobra.Command, verbose, quiet *bool, cfg, dir *string, noColor *bool) {
	pf := cmd.PersistentFlags()
	pf.BoolVarP(verbose, "verbose", "v", false, "Enable verbose (debug) output (env: PARTEST_VERBOSE)")
	pf.BoolVarP(quiet, "quiet", "q", false, "Suppress all output except errors (env: PARTEST_QUIET)")
	pf.StringVar(cfg, "config", "", "Path to partest.toml config file")
	pf.StringVar(dir, "dir", "", "Override working directory")
	pf.BoolVar(noColor, "no-color", false, "Disable colored output (env: PARTEST_NO_COLOR, NO_COLOR)")
}

// exitError carries a process exit code out of a command. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and returns the exit code.
func Execute() int {
	return execute(context.Background())
}

func execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(rootCmd.ErrOrStderr(), ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), err)
	return 1
}

// NewRootCmd returns a fresh root command carrying the same flags and
// subcommands as the global tree. The completion and man page generators
// use it.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               rootCmd.Use,
		Short:             rootCmd.Short,
		Long:              rootCmd.Long,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rootCmd.PersistentPreRunE,
	}

	var (
		verbose, quiet, noColor bool
		cfg, dir                string
	)
	addPersistentFlags(cmd, &verbose, &quiet, &cfg, &dir, &noColor)

	for _, child := range rootCmd.Commands() {
		cmd.AddCommand(child)
	}
	return cmd
}
