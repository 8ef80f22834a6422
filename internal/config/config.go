package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
)

const fileMode = 0o600

// Sentinel errors.
var (
	ErrNotFound = errors.New("no trackflow workspace found (run 'trackflow init' to create one)")
	ErrInvalid  = errors.New("invalid config")
)

// Config represents a trackflow workspace configuration.
type Config struct {
	Version     int               `yaml:"version"`
	Name        string            `yaml:"name"`
	Project     string            `yaml:"project,omitempty"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server,omitempty"`
	Log         LogConfig         `yaml:"log,omitempty"`
	ActivityLog string            `yaml:"activity_log,omitempty"`
	Boards      []BoardConfig     `yaml:"boards"`
	Permissions PermissionsConfig `yaml:"permissions,omitempty"`

	// Statuses and WIPLimits are the v1 single-board layout. migrateV1ToV2
	// folds them into Boards; they are never written back.
	Statuses  []string       `yaml:"statuses,omitempty"`
	WIPLimits map[string]int `yaml:"wip_limits,omitempty"`

	// dir is the absolute path to the trackflow directory (not serialized).
	dir string `yaml:"-"`
	// migrated is set by Parse when the file was on an older schema.
	migrated bool `yaml:"-"`
}

// DefaultsConfig holds default values for new issues.
type DefaultsConfig struct {
	Type     string `yaml:"type"`
	Priority string `yaml:"priority"`
}

// StorageConfig selects the entity repository backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// BoardConfig describes one board: an ordered list of columns over a project.
type BoardConfig struct {
	ID      string         `yaml:"id" json:"id"`
	Name    string         `yaml:"name" json:"name"`
	Project string         `yaml:"project" json:"project"`
	Kind    string         `yaml:"kind" json:"kind"`
	Columns []ColumnConfig `yaml:"columns" json:"columns"`
}

// ColumnConfig binds a board column to one issue status.
// WIPLimit 0 means unlimited.
type ColumnConfig struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Status   string `yaml:"status" json:"status"`
	WIPLimit int    `yaml:"wip_limit,omitempty" json:"wip_limit,omitempty"`
}

// UnmarshalYAML allows a column to be written as a bare status ("in_progress")
// or as a mapping ({id: doing, status: in_progress, wip_limit: 3}).
func (c *ColumnConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.ID = value.Value
		c.Status = value.Value
		return nil
	}
	type plain ColumnConfig
	if err := value.Decode((*plain)(c)); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = c.Status
	}
	return nil
}

// PermissionsConfig maps roles to capability keys and actors to roles.
// An empty Roles map disables permission checks.
type PermissionsConfig struct {
	Roles       map[string][]string `yaml:"roles,omitempty"`
	Actors      map[string][]string `yaml:"actors,omitempty"`
	DefaultRole string              `yaml:"default_role,omitempty"`
}

// Enabled reports whether any roles are configured.
func (p PermissionsConfig) Enabled() bool {
	return len(p.Roles) > 0
}

// Dir returns the absolute path to the trackflow directory.
func (c *Config) Dir() string {
	return c.dir
}

// SetDir sets the trackflow directory path on the config.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

// ConfigPath returns the absolute path to the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.dir, ConfigFileName)
}

// StoragePath returns the absolute path of the SQLite database.
func (c *Config) StoragePath() string {
	return c.resolve(c.Storage.Path, DefaultStoragePath)
}

// ActivityLogPath returns the absolute path of the activity log.
func (c *Config) ActivityLogPath() string {
	return c.resolve(c.ActivityLog, DefaultActivityLog)
}

func (c *Config) resolve(p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// NewDefault creates a Config with one kanban board over the given project.
func NewDefault(name, projectKey string) *Config {
	return &Config{
		Version:  CurrentVersion,
		Name:     name,
		Project:  projectKey,
		Defaults: DefaultsConfig{Type: DefaultType, Priority: DefaultPriority},
		Storage:  StorageConfig{Driver: DefaultStorageDriver, Path: DefaultStoragePath},
		Server:   ServerConfig{Addr: DefaultServerAddr},
		Log:      LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Boards: []BoardConfig{{
			ID:      DefaultBoardID,
			Name:    name,
			Project: projectKey,
			Kind:    KindKanban,
			Columns: append([]ColumnConfig{}, DefaultColumns...),
		}},
	}
}

// Board returns the board with the given ID, or nil.
func (c *Config) Board(id string) *BoardConfig {
	for i := range c.Boards {
		if c.Boards[i].ID == id {
			return &c.Boards[i]
		}
	}
	return nil
}

// DefaultBoard returns the first board configured for the default project,
// falling back to the first board.
func (c *Config) DefaultBoard() *BoardConfig {
	for i := range c.Boards {
		if c.Boards[i].Project == c.Project {
			return &c.Boards[i]
		}
	}
	if len(c.Boards) > 0 {
		return &c.Boards[0]
	}
	return nil
}

// BoardIDs returns the configured board IDs in order.
func (c *Config) BoardIDs() []string {
	ids := make([]string, len(c.Boards))
	for i, b := range c.Boards {
		ids[i] = b.ID
	}
	return ids
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if c.Project != "" {
		if err := project.ValidateKey(c.Project); err != nil {
			return fmt.Errorf("%w: project: %s", ErrInvalid, err)
		}
	}
	if _, err := issue.ParseType(c.Defaults.Type); err != nil {
		return fmt.Errorf("%w: defaults.type: %s", ErrInvalid, err)
	}
	if _, err := issue.ParsePriority(c.Defaults.Priority); err != nil {
		return fmt.Errorf("%w: defaults.priority: %s", ErrInvalid, err)
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage.driver %q (expected %s or %s)",
			ErrInvalid, c.Storage.Driver, DriverSQLite, DriverMemory)
	}
	if len(c.Boards) == 0 {
		return fmt.Errorf("%w: at least 1 board is required", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Boards))
	for i := range c.Boards {
		b := &c.Boards[i]
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate board id %q", ErrInvalid, b.ID)
		}
		seen[b.ID] = true
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return c.Permissions.validate()
}

// Validate checks a single board configuration: every issue status must be
// bound to exactly one column and WIP limits must be non-negative.
func (b *BoardConfig) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: board id is required", ErrInvalid)
	}
	if err := project.ValidateKey(b.Project); err != nil {
		return fmt.Errorf("%w: board %q project: %s", ErrInvalid, b.ID, err)
	}
	if b.Kind != KindKanban && b.Kind != KindScrum {
		return fmt.Errorf("%w: board %q kind %q must be %s or %s", ErrInvalid, b.ID, b.Kind, KindKanban, KindScrum)
	}
	ids := make(map[string]bool, len(b.Columns))
	bound := make(map[issue.Status]string, len(b.Columns))
	for _, col := range b.Columns {
		if col.ID == "" {
			return fmt.Errorf("%w: board %q has a column without id", ErrInvalid, b.ID)
		}
		if ids[col.ID] {
			return fmt.Errorf("%w: board %q has duplicate column %q", ErrInvalid, b.ID, col.ID)
		}
		ids[col.ID] = true
		st, err := issue.ParseStatus(col.Status)
		if err != nil {
			return fmt.Errorf("%w: board %q column %q: %s", ErrInvalid, b.ID, col.ID, err)
		}
		if other, ok := bound[st]; ok {
			return fmt.Errorf("%w: board %q columns %q and %q both map to status %q",
				ErrInvalid, b.ID, other, col.ID, st)
		}
		bound[st] = col.ID
		if col.WIPLimit < 0 {
			return fmt.Errorf("%w: board %q column %q wip_limit must be >= 0", ErrInvalid, b.ID, col.ID)
		}
	}
	for _, st := range issue.Statuses {
		if _, ok := bound[st]; !ok {
			return fmt.Errorf("%w: board %q has no column for status %q", ErrInvalid, b.ID, st)
		}
	}
	return nil
}

func (p PermissionsConfig) validate() error {
	if p.DefaultRole != "" {
		if _, ok := p.Roles[p.DefaultRole]; !ok {
			return fmt.Errorf("%w: permissions.default_role %q is not a configured role", ErrInvalid, p.DefaultRole)
		}
	}
	for actor, roles := range p.Actors {
		for _, r := range roles {
			if _, ok := p.Roles[r]; !ok {
				return fmt.Errorf("%w: permissions.actors[%q] references unknown role %q", ErrInvalid, actor, r)
			}
		}
	}
	return nil
}

// Init creates a new workspace in dir with a default board for projectKey.
func Init(dir, name, projectKey string) (*Config, error) {
	const dirMode = 0o750

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg := NewDefault(name, projectKey)
	cfg.SetDir(absDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absDir, dirMode); err != nil {
		return nil, fmt.Errorf("creating trackflow directory: %w", err)
	}

	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to its config file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(c.ConfigPath(), data, fileMode)
}

// Load reads, migrates and validates a config from the given trackflow directory.
// Environment overrides are not applied; see ApplyEnv.
func Load(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	path := filepath.Join(absDir, ConfigFileName)
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted source
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = absDir

	if cfg.migrated {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("saving migrated config: %w", err)
		}
	}

	return cfg, nil
}

// Parse decodes, migrates and validates config YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	oldVersion := cfg.Version
	if err := migrate(&cfg); err != nil {
		return nil, err
	}
	cfg.migrated = cfg.Version != oldVersion
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Defaults.Type == "" {
		c.Defaults.Type = DefaultType
	}
	if c.Defaults.Priority == "" {
		c.Defaults.Priority = DefaultPriority
	}
	for i := range c.Boards {
		if c.Boards[i].Kind == "" {
			c.Boards[i].Kind = KindKanban
		}
		if c.Boards[i].Project == "" {
			c.Boards[i].Project = c.Project
		}
	}
}

// FindDir walks upward from startDir looking for a trackflow directory
// containing config.yml. Returns the absolute path to the trackflow directory.
func FindDir(startDir string) (string, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	dir := absStart
	for {
		candidate := filepath.Join(dir, DefaultDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Join(dir, DefaultDir), nil
		}

		// Also check if we're inside the trackflow directory itself.
		candidate = filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", apierr.New(apierr.NotFound,
				"no trackflow workspace found (run 'trackflow init' to create one)")
		}
		dir = parent
	}
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
