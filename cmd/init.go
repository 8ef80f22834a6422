package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/logging"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new trackflow workspace",
	Long: `Creates a trackflow directory with config.yml, a database and one board
over a new project.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("name", "", "workspace name (defaults to current directory name)")
	initCmd.Flags().String("project", "", "project key, e.g. WEB (required)")
	initCmd.Flags().String("project-name", "", "project display name (defaults to the workspace name)")
	initCmd.Flags().String("kind", config.KindKanban, "board kind: kanban or scrum")
	initCmd.Flags().StringSlice("wip-limit", nil, "WIP limit per column (format: column:N, repeatable)")
	_ = initCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir := flagDir
	if dir == "" {
		dir = config.DefaultDir
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	// Check if already initialized.
	if _, err := os.Stat(filepath.Join(absDir, config.ConfigFileName)); err == nil {
		return apierr.Newf(apierr.InvalidInput, "workspace already initialized in %s", absDir).
			WithDetails(map[string]any{"dir": absDir})
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		name = filepath.Base(cwd)
	}
	key, _ := cmd.Flags().GetString("project")
	key = strings.ToUpper(strings.TrimSpace(key))
	projectName, _ := cmd.Flags().GetString("project-name")
	if projectName == "" {
		projectName = name
	}

	cfg := config.NewDefault(name, key)
	cfg.SetDir(absDir)
	if kind, _ := cmd.Flags().GetString("kind"); kind != "" {
		cfg.Boards[0].Kind = kind
	}
	if wipLimits, _ := cmd.Flags().GetStringSlice("wip-limit"); len(wipLimits) > 0 {
		parsed, err := parseWIPLimits(wipLimits)
		if err != nil {
			return err
		}
		if err := applyWIPLimits(&cfg.Boards[0], parsed); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	const dirMode = 0o750
	if err := os.MkdirAll(absDir, dirMode); err != nil {
		return fmt.Errorf("creating trackflow directory: %w", err)
	}

	err = withDirLock(absDir, func() error {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		return createInitialProject(cfg, key, projectName)
	})
	if err != nil {
		return err
	}

	// Output result.
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{
			"status":   "initialized",
			"dir":      absDir,
			"name":     name,
			"project":  key,
			"config":   cfg.ConfigPath(),
			"database": cfg.StoragePath(),
			"board":    cfg.Boards[0].ID,
		})
	}

	output.Messagef(os.Stdout, "Initialized workspace %q in %s", name, absDir)
	output.Messagef(os.Stdout, "  Config:   %s", cfg.ConfigPath())
	output.Messagef(os.Stdout, "  Database: %s", cfg.StoragePath())
	output.Messagef(os.Stdout, "  Project:  %s (%s)", key, projectName)
	output.Messagef(os.Stdout, "  Board:    %s (%s)", cfg.Boards[0].ID, cfg.Boards[0].Kind)
	return nil
}

func createInitialProject(cfg *config.Config, key, projectName string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg, string(logging.LevelWarn))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	_, err = a.engine.CreateProject(ctx, a.actor(), key, projectName)
	return err
}

// parseWIPLimits parses "column:N" pairs into a map.
func parseWIPLimits(pairs []string) (map[string]int, error) {
	limits := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2) //nolint:mnd // key:value pair
		if len(parts) != 2 {                  //nolint:mnd // key:value pair
			return nil, apierr.Newf(apierr.InvalidInput, "invalid WIP limit %q (expected column:N)", pair)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, apierr.Newf(apierr.InvalidInput, "invalid WIP limit value %q in %q", parts[1], pair)
		}
		limits[parts[0]] = n
	}
	return limits, nil
}

// applyWIPLimits sets column WIP limits on a board config.
func applyWIPLimits(bc *config.BoardConfig, limits map[string]int) error {
	for colID, n := range limits {
		found := false
		for i := range bc.Columns {
			if bc.Columns[i].ID == colID {
				bc.Columns[i].WIPLimit = n
				found = true
			}
		}
		if !found {
			return apierr.Newf(apierr.InvalidInput, "board %q has no column %q", bc.ID, colID).
				WithDetails(map[string]any{"board": bc.ID, "column": colID})
		}
	}
	return nil
}
