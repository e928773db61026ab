package util

import (
	"context"
	"fmt"

	"github.com/dbgate/dbdeploy/internal/deploy"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/ignore"
	"github.com/dbgate/dbdeploy/internal/journal"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/spf13/cobra"
)

// ConnectionFlags holds the target database flags shared by the commands.
type ConnectionFlags struct {
	Engine          string
	DSN             string
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	File            string
	ApplicationName string
	IgnoreFile      string
}

// Register adds the connection flags to cmd.
func (f *ConnectionFlags) Register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.Engine, "engine", string(dialect.Postgres), "Database engine: postgres, cockroach, mysql, mssql, sqlite (env: DBDEPLOY_ENGINE)")
	flags.StringVar(&f.DSN, "dsn", "", "Connection string passed to the driver as is (env: DBDEPLOY_DSN)")
	flags.StringVar(&f.Host, "host", "localhost", "Database server host (env: DBDEPLOY_HOST, PGHOST)")
	flags.IntVar(&f.Port, "port", 0, "Database server port, engine default when 0 (env: DBDEPLOY_PORT, PGPORT)")
	flags.StringVar(&f.Database, "db", "", "Database name (env: DBDEPLOY_DB, PGDATABASE)")
	flags.StringVar(&f.User, "user", "", "Database user name (env: DBDEPLOY_USER, PGUSER)")
	flags.StringVar(&f.Password, "password", "", "Database password (env: DBDEPLOY_PASSWORD, PGPASSWORD)")
	flags.StringVar(&f.SSLMode, "sslmode", "", "SSL mode of postgres connections (env: DBDEPLOY_SSLMODE, PGSSLMODE)")
	flags.StringVar(&f.File, "database-file", "", "Database file of sqlite targets (env: DBDEPLOY_DATABASE_FILE)")
	flags.StringVar(&f.ApplicationName, "application-name", "dbdeploy", "Application name reported to the server (env: DBDEPLOY_APPLICATION_NAME, PGAPPNAME)")
	flags.StringVar(&f.IgnoreFile, "ignore-file", ignore.IgnoreFileName, "Ignore file with object patterns excluded from analysis")
}

// Resolve applies config file and environment fallbacks to the flags the user did not set and
// builds the driver configuration.
func (f *ConnectionFlags) Resolve(cmd *cobra.Command) (driver.Config, error) {
	resolveString(cmd, "engine", &f.Engine)
	engine, err := dialect.ParseEngine(f.Engine)
	if err != nil {
		return driver.Config{}, err
	}

	pg := func(name string) []string {
		if engine == dialect.Postgres || engine == dialect.CockroachDB {
			return []string{name}
		}
		return nil
	}
	resolveString(cmd, "dsn", &f.DSN)
	resolveString(cmd, "host", &f.Host, pg("PGHOST")...)
	resolveInt(cmd, "port", &f.Port, pg("PGPORT")...)
	resolveString(cmd, "db", &f.Database, pg("PGDATABASE")...)
	resolveString(cmd, "user", &f.User, pg("PGUSER")...)
	resolveString(cmd, "password", &f.Password, pg("PGPASSWORD")...)
	resolveString(cmd, "sslmode", &f.SSLMode, pg("PGSSLMODE")...)
	resolveString(cmd, "database-file", &f.File)
	resolveString(cmd, "application-name", &f.ApplicationName, pg("PGAPPNAME")...)

	switch {
	case engine == dialect.SQLite:
		if f.File == "" && f.DSN == "" {
			return driver.Config{}, fmt.Errorf("database file is required for sqlite (use --database-file flag or DBDEPLOY_DATABASE_FILE environment variable)")
		}
	case f.DSN == "":
		if f.Database == "" {
			return driver.Config{}, fmt.Errorf("database name is required (use --db flag or DBDEPLOY_DB environment variable)")
		}
		if f.User == "" {
			return driver.Config{}, fmt.Errorf("database user is required (use --user flag or DBDEPLOY_USER environment variable)")
		}
	}

	ignoreConfig, err := ignore.LoadIgnoreFileFromPath(AppFs, f.IgnoreFile)
	if err != nil {
		return driver.Config{}, fmt.Errorf("failed to load %s: %w", f.IgnoreFile, err)
	}

	config := driver.Config{
		Engine:          engine,
		DSN:             f.DSN,
		Host:            f.Host,
		Port:            f.Port,
		Database:        f.Database,
		User:            f.User,
		Password:        f.Password,
		SSLMode:         f.SSLMode,
		ApplicationName: f.ApplicationName,
		File:            f.File,
		IgnoreConfig:    ignoreConfig,
	}
	if engine == dialect.SQLite && f.DSN != "" && f.File == "" {
		config.File = f.DSN
		config.DSN = ""
	}
	return config, nil
}

// Connect opens a connection to the target database
func Connect(ctx context.Context, config driver.Config) (*driver.Conn, error) {
	logger.Get().Debug("Connecting to target", "target", config.String())
	conn, err := driver.Open(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.String(), err)
	}
	return conn, nil
}

// ModelFlags holds the deploy model and behaviour flags shared by plan and deploy.
type ModelFlags struct {
	Dir           string
	AllowDrop     bool
	MarkDeleted   bool
	DeletedPrefix string
	JournalTable  string
	JournalSchema string
}

// Register adds the model flags to cmd.
func (f *ModelFlags) Register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.Dir, "model", "", "Model folder with table, view, routine and script files (env: DBDEPLOY_MODEL)")
	flags.BoolVar(&f.AllowDrop, "allow-drop", false, "Drop tables, columns and SQL objects missing from the model")
	flags.BoolVar(&f.MarkDeleted, "mark-deleted", false, "Rename objects missing from the model with the deleted prefix instead of dropping them")
	flags.StringVar(&f.DeletedPrefix, "deleted-prefix", deploy.DefaultDeletedPrefix, "Prefix of objects renamed by --mark-deleted")
	flags.StringVar(&f.JournalTable, "journal-table", journal.DefaultTableName, "Name of the deploy journal table")
	flags.StringVar(&f.JournalSchema, "journal-schema", "", "Schema of the deploy journal table, default schema when empty")
}

// Resolve applies config file and environment fallbacks. requireModel rejects an empty model
// folder.
func (f *ModelFlags) Resolve(cmd *cobra.Command, requireModel bool) error {
	resolveString(cmd, "model", &f.Dir)
	resolveBool(cmd, "allow-drop", &f.AllowDrop)
	resolveBool(cmd, "mark-deleted", &f.MarkDeleted)
	resolveString(cmd, "deleted-prefix", &f.DeletedPrefix)
	resolveString(cmd, "journal-table", &f.JournalTable)
	resolveString(cmd, "journal-schema", &f.JournalSchema)
	if requireModel && f.Dir == "" {
		return fmt.Errorf("model folder is required (use --model flag or DBDEPLOY_MODEL environment variable)")
	}
	return nil
}

// Journal returns the journal configuration of the flags.
func (f *ModelFlags) Journal() journal.Config {
	return journal.Config{TableName: f.JournalTable, SchemaName: f.JournalSchema}
}

// Options returns the deploy options of the flags.
func (f *ModelFlags) Options() deploy.Options {
	return deploy.Options{
		AllowDropStatements: f.AllowDrop,
		MarkDeleted:         f.MarkDeleted,
		DeletedPrefix:       f.DeletedPrefix,
		Journal:             f.Journal(),
	}
}

// LoadModel reads the fragments of the model folder.
func (f *ModelFlags) LoadModel() ([]deploy.Fragment, error) {
	fragments, err := deploy.LoadFolder(AppFs, f.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return fragments, nil
}
