package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/partest/internal/buildinfo"
)

var (
	versionJSON  bool
	versionShort bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show partest version and build information",
	Long: `Display the version, git commit, and build date of this partest binary,
followed by the Go toolchain and platform it was built for.

--short prints the bare version, for scripts that pin a partest release.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON && versionShort {
			return fmt.Errorf("--json and --short are mutually exclusive")
		}
		info := buildinfo.GetInfo()
		out := cmd.OutOrStdout()

		switch {
		case versionJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case versionShort:
			fmt.Fprintln(out, info.Version)
		default:
			fmt.Fprintln(out, info.String())
			fmt.Fprintf(out, "%s %s\n", info.GoVersion, info.Platform)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output version info as JSON")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	rootCmd.AddCommand(versionCmd)
}
