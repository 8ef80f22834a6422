// Package config handles trackflow workspace configuration.
package config

const (
	// DefaultDir is the default trackflow directory name.
	DefaultDir = "trackflow"
	// DefaultType is the default type for new issues.
	DefaultType = "task"
	// DefaultPriority is the default priority for new issues.
	DefaultPriority = "medium"
	// DefaultStorageDriver is the repository backend used when none is configured.
	DefaultStorageDriver = "sqlite"
	// DefaultStoragePath is the SQLite database file, relative to the trackflow directory.
	DefaultStoragePath = "trackflow.db"
	// DefaultActivityLog is the activity log file, relative to the trackflow directory.
	DefaultActivityLog = "activity.jsonl"
	// DefaultServerAddr is the listen address of `trackflow serve`.
	DefaultServerAddr = "127.0.0.1:8420"
	// DefaultLogLevel is the slog level used when none is configured.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the slog handler used when none is configured.
	DefaultLogFormat = "text"
	// DefaultBoardID is the ID of the board created by init.
	DefaultBoardID = "main"

	// ConfigFileName is the name of the config file within the trackflow directory.
	ConfigFileName = "config.yml"

	// CurrentVersion is the current config schema version.
	CurrentVersion = 2
)

// Board kinds.
const (
	KindKanban = "kanban"
	KindScrum  = "scrum"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// DefaultColumns is the column layout of a new board: one column per issue status.
var DefaultColumns = []ColumnConfig{
	{ID: "todo", Name: "To Do", Status: "todo"},
	{ID: "in_progress", Name: "In Progress", Status: "in_progress", WIPLimit: 5},
	{ID: "done", Name: "Done", Status: "done"},
}

// DefaultRoles grants admins everything and developers day-to-day work.
var DefaultRoles = map[string][]string{
	"admin":     {"*"},
	"developer": {"issue.create", "issue.edit", "issue.transition", "sprint.plan"},
	"viewer":    {},
}
