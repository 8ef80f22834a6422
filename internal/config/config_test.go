package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DefaultDir)
	cfg, err := Init(dir, "Website", "WEB")
	require.NoError(t, err)
	assert.FileExists(t, cfg.ConfigPath())

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Website", loaded.Name)
	assert.Equal(t, "WEB", loaded.Project)
	require.Len(t, loaded.Boards, 1)
	assert.Equal(t, DefaultBoardID, loaded.Boards[0].ID)
	assert.Equal(t, 5, loaded.Boards[0].Columns[1].WIPLimit)
	assert.Equal(t, filepath.Join(dir, DefaultStoragePath), loaded.StoragePath())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindDirWalksUp(t *testing.T) {
	root := t.TempDir()
	_, err := Init(filepath.Join(root, DefaultDir), "Website", "WEB")
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	found, err := FindDir(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultDir), found)
}

func TestParseMigratesV1(t *testing.T) {
	data := []byte(`version: 1
name: Legacy
project: OPS
statuses: [todo, in_progress, done]
wip_limits:
  in_progress: 2
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Nil(t, cfg.Statuses)
	assert.Nil(t, cfg.WIPLimits)
	require.Len(t, cfg.Boards, 1)

	b := cfg.Boards[0]
	assert.Equal(t, "OPS", b.Project)
	assert.Equal(t, KindKanban, b.Kind)
	require.Len(t, b.Columns, 3)
	assert.Equal(t, "in_progress", b.Columns[1].Status)
	assert.Equal(t, 2, b.Columns[1].WIPLimit)
}

func TestParseRejectsNewerVersion(t *testing.T) {
	_, err := Parse([]byte("version: 99\nname: x\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadPersistsMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := "version: 1\nname: Legacy\nproject: OPS\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(legacy), 0o600))

	_, err := Load(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 2")
	assert.Contains(t, string(data), "boards:")
}

func TestBoardValidate(t *testing.T) {
	valid := func() BoardConfig {
		return BoardConfig{
			ID: "main", Project: "WEB", Kind: KindKanban,
			Columns: append([]ColumnConfig{}, DefaultColumns...),
		}
	}
	tests := []struct {
		name   string
		mutate func(*BoardConfig)
		ok     bool
	}{
		{"default layout", func(*BoardConfig) {}, true},
		{"scrum", func(b *BoardConfig) { b.Kind = KindScrum }, true},
		{"unknown kind", func(b *BoardConfig) { b.Kind = "list" }, false},
		{"missing status", func(b *BoardConfig) { b.Columns = b.Columns[:2] }, false},
		{"status twice", func(b *BoardConfig) {
			b.Columns = append(b.Columns, ColumnConfig{ID: "review", Status: "in_progress"})
		}, false},
		{"duplicate column id", func(b *BoardConfig) { b.Columns[2].ID = "todo" }, false},
		{"negative wip", func(b *BoardConfig) { b.Columns[0].WIPLimit = -1 }, false},
		{"bad status", func(b *BoardConfig) { b.Columns[0].Status = "blocked" }, false},
		{"bad project", func(b *BoardConfig) { b.Project = "web" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(&b)
			err := b.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestColumnShorthand(t *testing.T) {
	cfg, err := Parse([]byte(`version: 2
name: Short
project: WEB
boards:
  - id: main
    columns: [todo, in_progress, {id: shipped, status: done, wip_limit: 0}]
`))
	require.NoError(t, err)
	cols := cfg.Boards[0].Columns
	assert.Equal(t, "todo", cols[0].ID)
	assert.Equal(t, "shipped", cols[2].ID)
	assert.Equal(t, "WEB", cfg.Boards[0].Project, "board inherits the default project")
	assert.Equal(t, KindKanban, cfg.Boards[0].Kind)
}

func TestPermissionsValidate(t *testing.T) {
	cfg := NewDefault("Website", "WEB")
	cfg.Permissions = PermissionsConfig{
		Roles:  map[string][]string{"admin": {"*"}},
		Actors: map[string][]string{"ana": {"owner"}},
	}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Permissions.Actors["ana"] = []string{"admin"}
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Permissions.Enabled())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvStorageDriver, DriverMemory)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvActor, "ana")

	cfg := NewDefault("Website", "WEB")
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, "ana", Actor("fallback"))

	t.Setenv(EnvStorageDriver, "postgres")
	assert.ErrorIs(t, cfg.ApplyEnv(), ErrInvalid)
}
