// Package cmd implements the trackflow CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagJSON    bool
	flagTable   bool
	flagCompact bool
	flagDir     string
	flagNoColor bool
	flagActor   string
)

var rootCmd = &cobra.Command{
	Use:   "trackflow",
	Short: "Issue, sprint and board workflow engine",
	Long: `trackflow tracks issues through To Do, In Progress and Done on
kanban and scrum boards, with WIP limits, sprints and epics.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagNoColor || os.Getenv("NO_COLOR") != "" {
			output.DisableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "output as table")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "compact one-line-per-record output")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "oneline", false, "alias for --compact")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "path to trackflow directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&flagActor, "as", "", "act as this user (default $"+config.EnvActor+" or $USER)")
}

// Execute runs the root command.
func Execute() {
	_, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}

	// Handle SilentError: exit with code, no output.
	var silent *apierr.SilentError
	if errors.As(err, &silent) {
		os.Exit(silent.Code)
	}

	if outputFormat() == output.FormatJSON {
		os.Exit(output.JSONError(os.Stdout, err))
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		os.Exit(apiErr.ExitCode())
	}
	os.Exit(1)
}

// resolveDir returns the absolute path to the trackflow directory.
func resolveDir() (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return config.FindDir(cwd)
}

// loadConfig finds and loads the workspace config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	dir, err := resolveDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// outputFormat returns the detected output format from flags/env.
func outputFormat() output.Format {
	return output.Detect(flagJSON, flagTable, flagCompact)
}

// parseRefs splits a comma-separated list of issue keys or IDs, dropping
// blanks and duplicates.
func parseRefs(arg string) ([]string, error) {
	seen := make(map[string]bool)
	var refs []string
	for _, part := range strings.Split(arg, ",") {
		ref := strings.TrimSpace(part)
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, apierr.Newf(apierr.InvalidInput, "no issue given in %q", arg).
			WithDetails(map[string]any{"input": arg})
	}
	return refs, nil
}

// runBatch executes fn for each ref and collects results. Returns a SilentError
// with exit code 1 if any operation failed (after outputting results).
func runBatch(refs []string, fn func(string) error) error {
	results := make([]output.BatchResult, 0, len(refs))
	anyFailed := false

	for _, ref := range refs {
		r := output.NewBatchResult(ref, fn(ref))
		anyFailed = anyFailed || !r.OK
		results = append(results, r)
	}

	if outputFormat() == output.FormatJSON {
		if err := output.JSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		var succeeded int
		for _, r := range results {
			if r.OK {
				succeeded++
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s: %s\n", r.Ref, r.Error)
			}
		}
		output.Messagef(os.Stdout, "Completed %d/%d operations", succeeded, len(refs))
	}

	if anyFailed {
		return &apierr.SilentError{Code: 1}
	}
	return nil
}
