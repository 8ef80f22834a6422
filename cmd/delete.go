package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:     "delete KEY[,KEY,...]",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Long: `Deletes an issue permanently. Its key is never reused. Prompts for
confirmation in interactive mode. Multiple keys can be provided as a
comma-separated list (requires --yes).`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "skip confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args[0])
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")

	// Batch mode requires --yes.
	if len(refs) > 1 && !yes {
		return apierr.New(apierr.InvalidInput, "batch delete requires --yes")
	}

	return withApp(func(ctx context.Context, a *app) error {
		if len(refs) == 1 {
			return deleteSingleIssue(ctx, a, refs[0], yes)
		}
		return runBatch(refs, func(ref string) error {
			return executeDelete(ctx, a, ref)
		})
	})
}

// deleteSingleIssue handles a single delete with confirmation and output.
func deleteSingleIssue(ctx context.Context, a *app, ref string, yes bool) error {
	it, err := a.engine.GetIssue(ctx, ref)
	if err != nil {
		return err
	}

	// Require confirmation in TTY mode unless --yes.
	if !yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return apierr.New(apierr.InvalidInput,
				"cannot prompt for confirmation (not a terminal); use --yes")
		}
		fmt.Fprintf(os.Stderr, "Delete %s %q? [y/N] ", it.Key, it.Summary)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(os.Stderr, "Canceled.")
			return nil
		}
	}

	if err := executeDelete(ctx, a, it.ID); err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{
			"status":  "deleted",
			"id":      it.ID,
			"key":     it.Key,
			"summary": it.Summary,
		})
	}

	output.Messagef(os.Stdout, "Deleted %s: %s", it.Key, it.Summary)
	return nil
}

func executeDelete(ctx context.Context, a *app, ref string) error {
	return a.exclusive(func() error {
		_, err := a.engine.DeleteIssue(ctx, a.actor(), ref)
		return err
	})
}
