package config

import (
	"fmt"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// migrate upgrades a config from its current version to CurrentVersion.
// Each migration function transforms the config one version forward.
// Returns nil if no migration is needed (already at current version).
// Returns an error if the config version is newer than what this binary supports.
func migrate(cfg *Config) error {
	if cfg.Version == CurrentVersion {
		return nil
	}
	if cfg.Version > CurrentVersion {
		return fmt.Errorf(
			"%w: config version %d is newer than supported version %d (upgrade trackflow)",
			ErrInvalid, cfg.Version, CurrentVersion,
		)
	}
	if cfg.Version < 1 {
		return fmt.Errorf("%w: config version %d is invalid", ErrInvalid, cfg.Version)
	}

	for cfg.Version < CurrentVersion {
		fn, ok := migrations[cfg.Version]
		if !ok {
			return fmt.Errorf("%w: no migration path from version %d", ErrInvalid, cfg.Version)
		}
		if err := fn(cfg); err != nil {
			return fmt.Errorf("migrating config from v%d: %w", cfg.Version, err)
		}
	}

	return nil
}

// migrations maps each version to the function that migrates it to the next version.
// The migration function must increment cfg.Version after a successful migration.
var migrations = map[int]func(*Config) error{
	1: migrateV1ToV2,
}

// migrateV1ToV2 turns the single-board layout (top-level statuses and
// wip_limits keyed by status) into one kanban board named "main".
func migrateV1ToV2(cfg *Config) error {
	if len(cfg.Boards) == 0 {
		statuses := cfg.Statuses
		if len(statuses) == 0 {
			for _, st := range issue.Statuses {
				statuses = append(statuses, string(st))
			}
		}
		columns := make([]ColumnConfig, 0, len(statuses))
		for _, name := range statuses {
			st, err := issue.ParseStatus(name)
			if err != nil {
				return fmt.Errorf("%w: statuses: %s", ErrInvalid, err)
			}
			columns = append(columns, ColumnConfig{
				ID:       string(st),
				Name:     name,
				Status:   string(st),
				WIPLimit: cfg.WIPLimits[name],
			})
		}
		for status := range cfg.WIPLimits {
			if !contains(statuses, status) {
				return fmt.Errorf("%w: wip_limits references unknown status %q", ErrInvalid, status)
			}
		}
		name := cfg.Name
		if name == "" {
			name = DefaultBoardID
		}
		cfg.Boards = []BoardConfig{{
			ID:      DefaultBoardID,
			Name:    name,
			Project: cfg.Project,
			Kind:    KindKanban,
			Columns: columns,
		}}
	}
	cfg.Statuses = nil
	cfg.WIPLimits = nil
	cfg.Version = 2
	return nil
}
