// Command gen-completions writes partest's bash, zsh, fish and PowerShell
// completion scripts into an output directory.
//
// Usage:
//
//	go run ./scripts/gen-completions [output-dir]
//
// The default output directory is "completions".
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/partest/internal/cli"
)

// targets maps each output file name to its generator.
var targets = []struct {
	name     string
	generate func(root *cobra.Command, w io.Writer) error
}{
	{"partest.bash", func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) }},
	{"_partest", func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) }},
	{"partest.fish", func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) }},
	{"partest.ps1", func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) }},
}

func main() {
	outDir := "completions"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}
	if err := run(outDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %q: %w", outDir, err)
	}

	root := cli.NewRootCmd()
	for _, target := range targets {
		path := filepath.Join(outDir, target.name)
		if err := writeFile(path, func(w io.Writer) error { return target.generate(root, w) }); err != nil {
			return err
		}
		fmt.Printf("Generated %s\n", path)
	}
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("generating %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", path, err)
	}
	return nil
}
