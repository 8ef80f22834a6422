package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify workspace configuration",
	Long:  `View the full configuration, get a specific key, or set a writable value.`,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to get and set a config key.
type configAccessor struct {
	get      func(*config.Config) any
	set      func(*config.Config, string) error
	writable bool
}

func stringAccessor(field func(*config.Config) *string) configAccessor {
	return configAccessor{
		get:      func(c *config.Config) any { return *field(c) },
		set:      func(c *config.Config, v string) error { *field(c) = v; return nil },
		writable: true,
	}
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"version": {
			get: func(c *config.Config) any { return c.Version },
		},
		"name":         stringAccessor(func(c *config.Config) *string { return &c.Name }),
		"project":      stringAccessor(func(c *config.Config) *string { return &c.Project }),
		"storage.path": stringAccessor(func(c *config.Config) *string { return &c.Storage.Path }),
		"server.addr":  stringAccessor(func(c *config.Config) *string { return &c.Server.Addr }),
		"log.level":    stringAccessor(func(c *config.Config) *string { return &c.Log.Level }),
		"log.format":   stringAccessor(func(c *config.Config) *string { return &c.Log.Format }),
		"activity_log": stringAccessor(func(c *config.Config) *string { return &c.ActivityLog }),
		"storage.driver": {
			get: func(c *config.Config) any { return c.Storage.Driver },
			set: func(c *config.Config, v string) error {
				if v != config.DriverSQLite && v != config.DriverMemory {
					return apierr.Newf(apierr.InvalidInput,
						"invalid storage driver %q; allowed: %s, %s", v, config.DriverSQLite, config.DriverMemory)
				}
				c.Storage.Driver = v
				return nil
			},
			writable: true,
		},
		"defaults.type": {
			get: func(c *config.Config) any { return c.Defaults.Type },
			set: func(c *config.Config, v string) error {
				if _, err := issue.ParseType(v); err != nil {
					return err
				}
				c.Defaults.Type = v
				return nil
			},
			writable: true,
		},
		"defaults.priority": {
			get: func(c *config.Config) any { return c.Defaults.Priority },
			set: func(c *config.Config, v string) error {
				if _, err := issue.ParsePriority(v); err != nil {
					return err
				}
				c.Defaults.Priority = v
				return nil
			},
			writable: true,
		},
		"boards": {
			get: func(c *config.Config) any { return c.BoardIDs() },
		},
	}
}

// allConfigKeys returns config keys in display order.
func allConfigKeys() []string {
	return []string{
		"version",
		"name",
		"project",
		"defaults.type",
		"defaults.priority",
		"storage.driver",
		"storage.path",
		"server.addr",
		"log.level",
		"log.format",
		"activity_log",
		"boards",
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accessors := configAccessors()

	if outputFormat() == output.FormatJSON {
		m := make(map[string]any, len(accessors))
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		return output.JSON(os.Stdout, m)
	}

	for _, key := range allConfigKeys() {
		val := accessors[key].get(cfg)
		fmt.Fprintf(os.Stdout, "%-20s %v\n", key, formatConfigValue(val))
	}
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := args[0]
	acc, ok := configAccessors()[key]
	if !ok {
		return apierr.Newf(apierr.InvalidInput, "unknown config key %q", key).
			WithDetails(map[string]any{"key": key, "allowed": allConfigKeys()})
	}

	val := acc.get(cfg)

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, val)
	}

	fmt.Fprintln(os.Stdout, formatConfigValue(val))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	dir, err := resolveDir()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return apierr.Newf(apierr.InvalidInput, "unknown config key %q", key).
			WithDetails(map[string]any{"key": key, "allowed": allConfigKeys()})
	}
	if !acc.writable {
		return apierr.Newf(apierr.InvalidInput, "config key %q is read-only", key)
	}

	// Read-modify-write under the workspace lock so concurrent sets do not
	// overwrite each other. Environment overrides are not written back.
	var cfg *config.Config
	err = withDirLock(dir, func() error {
		var lerr error
		cfg, lerr = config.Load(dir)
		if lerr != nil {
			return lerr
		}
		if err := acc.set(cfg, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return apierr.Newf(apierr.InvalidInput, "%v", err)
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"key": key, "value": acc.get(cfg)})
	}

	output.Messagef(os.Stdout, "Set %s = %v", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		if len(v) == 0 {
			return "--"
		}
		return strings.Join(v, ", ")
	case string:
		if v == "" {
			return "--"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
