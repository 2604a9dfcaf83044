package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/partest/internal/config"
	"github.com/AbdelazizMoustafa10m/partest/internal/procgroup"
)

// configCmd implements "partest config". It prints the resolved
// configuration with the source of every value.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show resolved configuration with source annotations",
	Long: `Display the fully-resolved configuration showing each value and the
source it came from (cli flag, environment variable, config file, or default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := loadConfig(nil)
		if err != nil {
			return err
		}
		printResolvedConfig(cmd.OutOrStdout(), lc)
		return nil
	},
}

// configValidateCmd implements "partest config validate".
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Long:  "Check partest.toml and the environment for errors and warnings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := loadConfig(nil)
		if err != nil {
			return err
		}
		result := lc.validate()
		printValidationResult(cmd.OutOrStdout(), result)
		if result.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadedConfig is the outcome of loading partest.toml and merging it with
// the environment and flag overrides.
type loadedConfig struct {
	*config.ResolvedConfig
	// file is the raw file layer, nil when no file was found. Worker count
	// resolution reads it directly so defaults are not mistaken for file
	// values.
	file *config.Config
	meta *toml.MetaData
}

// resolver returns a worker-count Resolver seeded with the file layer.
func (lc *loadedConfig) resolver() *config.Resolver {
	r := &config.Resolver{}
	if lc.file != nil {
		r.File = &lc.file.Workers
	}
	return r
}

// validate checks the merged config, then the values only resolvable at
// run time: the worker count and the stop signal.
func (lc *loadedConfig) validate() *config.ValidationResult {
	result := config.Validate(lc.Config, lc.meta)
	if _, err := lc.resolver().WorkerCount("", ""); err != nil {
		result.Issues = append(result.Issues, config.ValidationIssue{
			Field:    "workers",
			Message:  err.Error(),
			Severity: config.SeverityError,
		})
	}
	if _, err := procgroup.ParseSignal(lc.Config.Session.StopSignal); err != nil {
		result.Issues = append(result.Issues, config.ValidationIssue{
			Field:    "session.stop_signal",
			Message:  err.Error(),
			Severity: config.SeverityError,
		})
	}
	return result
}

// loadConfig loads and resolves configuration from all sources. When
// --config is set that file must exist; otherwise partest.toml is searched
// for upward from the current directory and may be absent.
func loadConfig(overrides *config.CLIOverrides) (*loadedConfig, error) {
	lc := &loadedConfig{}

	cfgPath := flagConfig
	if cfgPath == "" {
		found, err := config.FindConfigFile(".")
		if err != nil {
			return nil, fmt.Errorf("finding config file: %w", err)
		}
		cfgPath = found
	}
	if cfgPath != "" {
		fc, md, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		lc.file = fc
		lc.meta = &md
	}

	lc.ResolvedConfig = config.Resolve(config.NewDefaults(), lc.file, os.LookupEnv, overrides)
	lc.Path = cfgPath
	return lc, nil
}

// ---- Lipgloss styles --------------------------------------------------------

// sourceStyle returns the style for a value's source. --no-color switches
// lipgloss to the Ascii profile, which drops the colours.
func sourceStyle(src config.ConfigSource) lipgloss.Style {
	switch src {
	case config.SourceFile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
	case config.SourceEnv:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // bright yellow
	case config.SourceCLI:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")) // bright red
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // bright green
	}
}

var (
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleSection  = lipgloss.NewStyle().Bold(true)
	styleErrorLbl = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // red
	styleWarnLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true) // yellow
	styleSuccess  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))            // green
	styleDim      = lipgloss.NewStyle().Faint(true)
)

const fieldWidth = 16

func printHeader(out io.Writer, title string) {
	fmt.Fprintln(out, styleHeader.Render(title))
	fmt.Fprintln(out, strings.Repeat("=", len(title)))
	fmt.Fprintln(out)
}

func printResolvedConfig(out io.Writer, lc *loadedConfig) {
	printHeader(out, "Configuration")

	if lc.Path != "" {
		fmt.Fprintf(out, "Config file: %s\n", lc.Path)
	} else {
		fmt.Fprintln(out, "Config file: none found")
	}
	fmt.Fprintln(out)

	r := lc.resolver()
	fmt.Fprintln(out, styleSection.Render("[workers]"))
	if n, src, err := r.Count(""); err != nil {
		printField(out, "processes", styleErrorLbl.Render(err.Error()), src)
	} else {
		printField(out, "processes", fmt.Sprint(n), src)
	}
	if m, src, err := r.Multiplier(""); err != nil {
		printField(out, "multiply", styleErrorLbl.Render(err.Error()), src)
	} else {
		printField(out, "multiply", fmt.Sprint(m), src)
	}
	w := lc.Config.Workers
	printField(out, "first_is_one", fmt.Sprint(w.FirstIsOne), lc.Sources["workers.first_is_one"])
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[session]"))
	s := lc.Config.Session
	printField(out, "temp_dir", fmtStr(s.TempDir), lc.Sources["session.temp_dir"])
	printField(out, "poll_interval", fmtDuration(s.PollInterval), lc.Sources["session.poll_interval"])
	printField(out, "stop_signal", fmtStr(s.StopSignal), lc.Sources["session.stop_signal"])
	printField(out, "grace_period", fmtDuration(s.GracePeriod), lc.Sources["session.grace_period"])
	fmt.Fprintln(out)

	if n, err := r.WorkerCount("", ""); err == nil {
		fmt.Fprintf(out, "Workers per run: %d\n", n)
	}
}

// printField writes a single key = value (source: ...) line.
func printField(out io.Writer, name, value string, src config.ConfigSource) {
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	srcLabel := sourceStyle(src).Render(fmt.Sprintf("(source: %s)", src))
	fmt.Fprintf(out, "%s = %-24s %s\n", padded, value, srcLabel)
}

func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

func fmtDuration(d time.Duration) string {
	return d.String()
}

func printValidationResult(out io.Writer, result *config.ValidationResult) {
	printHeader(out, "Configuration Validation")

	errs := result.Errors()
	warns := result.Warnings()

	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	if len(errs) > 0 {
		fmt.Fprintln(out, styleErrorLbl.Render("Errors:"))
		for _, issue := range errs {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	if len(warns) > 0 {
		fmt.Fprintln(out, styleWarnLbl.Render("Warnings:"))
		for _, issue := range warns {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(errs), len(warns))
}
