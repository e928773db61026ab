// Package journal keeps track of free-form deploy scripts in a table inside the target database.
package journal

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/model"
)

// DefaultTableName is the journal table used when none is configured.
const DefaultTableName = "dbgate_deploy_journal"

// Config names the journal table. An empty schema means the default schema of the connection.
type Config struct {
	TableName  string
	SchemaName string
}

// Name returns the qualified journal table name.
func (c Config) Name() model.NameInfo {
	name := c.TableName
	if name == "" {
		name = DefaultTableName
	}
	return model.NameInfo{SchemaName: c.SchemaName, PureName: name}
}

// Table returns the structure of the journal table.
func (c Config) Table() model.TableInfo {
	name := c.Name()
	return model.TableInfo{
		SchemaName: name.SchemaName,
		PureName:   name.PureName,
		Columns: []model.ColumnInfo{
			{ColumnName: "name", DataType: "varchar(250)", NotNull: true},
			{ColumnName: "run_count", DataType: "int", NotNull: true},
		},
		PrimaryKey: &model.PrimaryKeyInfo{Columns: []model.IndexColumn{{ColumnName: "name"}}},
	}
}

// IsJournal reports whether a table of an analysed structure is the journal table or the
// table of deployed SQL object definitions.
func (c Config) IsJournal(t model.TableInfo, caps dialect.Capabilities) bool {
	return sameTable(t, c.Name(), caps) || sameTable(t, c.DefinitionsName(), caps)
}

func sameTable(t model.TableInfo, name model.NameInfo, caps dialect.Capabilities) bool {
	if t.PureName != name.PureName {
		return false
	}
	if !caps.SupportsSchemas || t.SchemaName == "" {
		return true
	}
	schema := name.SchemaName
	if schema == "" {
		schema = caps.DefaultSchema
	}
	return t.SchemaName == schema
}

// Without returns db with the journal tables removed.
func (c Config) Without(db model.DatabaseInfo, caps dialect.Capabilities) model.DatabaseInfo {
	res := db
	res.Tables = nil
	for _, t := range db.Tables {
		if !c.IsJournal(t, caps) {
			res.Tables = append(res.Tables, t)
		}
	}
	return res
}

// Entry is one journal row.
type Entry struct {
	Name     string `json:"name"`
	RunCount int    `json:"runCount"`
}

// Journal reads and writes the journal table over a connection.
type Journal struct {
	conn   *driver.Conn
	config Config
}

// New creates a journal accessor.
func New(conn *driver.Conn, config Config) *Journal {
	return &Journal{conn: conn, config: config}
}

// Config returns the journal configuration.
func (j *Journal) Config() Config {
	return j.config
}

// Exists reports whether the journal table exists.
func (j *Journal) Exists(ctx context.Context) (bool, error) {
	return j.tableExists(ctx, j.config.Name())
}

func (j *Journal) tableExists(ctx context.Context, name model.NameInfo) (bool, error) {
	r := j.conn.CreateDumper()
	caps := j.conn.Dialect()

	var query string
	switch caps.Engine {
	case dialect.SQLite:
		query = fmt.Sprintf("SELECT COUNT(*) AS cnt FROM sqlite_master WHERE type = 'table' AND name = %s", r.Literal(name.PureName))
	case dialect.MySQL:
		query = fmt.Sprintf("SELECT COUNT(*) AS cnt FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = %s",
			r.Literal(name.PureName))
	default:
		schema := name.SchemaName
		if schema == "" {
			schema = caps.DefaultSchema
		}
		query = fmt.Sprintf("SELECT COUNT(*) AS cnt FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
			r.Literal(schema), r.Literal(name.PureName))
	}
	res, err := j.conn.Query(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	if len(res.Rows) == 0 {
		return false, nil
	}
	return toInt(res.Rows[0]["cnt"]) > 0, nil
}

// CreateTableCommand returns the command creating the journal table.
func (j *Journal) CreateTableCommand() command.Command {
	return &command.CreateTable{Table: j.config.Table(), WithForeignKeys: true}
}

// EnsureTable creates the journal table unless it exists.
func (j *Journal) EnsureTable(ctx context.Context) error {
	exists, err := j.Exists(ctx)
	if err != nil || exists {
		return err
	}
	statements, err := j.conn.CreateDumper().RenderCommand(j.CreateTableCommand())
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if err := j.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create journal table: %w", err)
		}
	}
	return nil
}

// Load returns the run count of every journaled script. A missing table yields an empty map.
func (j *Journal) Load(ctx context.Context) (map[string]int, error) {
	entries, err := j.Entries(ctx)
	if err != nil {
		return nil, err
	}
	res := make(map[string]int, len(entries))
	for _, e := range entries {
		res[e.Name] = e.RunCount
	}
	return res, nil
}

// Entries lists the journal rows sorted by name.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	exists, err := j.Exists(ctx)
	if err != nil || !exists {
		return nil, err
	}
	r := j.conn.CreateDumper()
	query := fmt.Sprintf("SELECT %s, %s FROM %s",
		r.QuoteIdentifier("name"), r.QuoteIdentifier("run_count"), r.FullName(j.config.Name()))
	res, err := j.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	entries := make([]Entry, 0, len(res.Rows))
	for _, row := range res.Rows {
		entries = append(entries, Entry{Name: fmt.Sprint(row["name"]), RunCount: toInt(row["run_count"])})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })
	return entries, nil
}

// RecordCommand returns the command storing runCount for a script: an insert for a first run,
// an update otherwise.
func (j *Journal) RecordCommand(name string, runCount int, firstRun bool) command.Command {
	return RecordCommand(j.config, name, runCount, firstRun)
}

// RecordCommand is Journal.RecordCommand without a connection, for prepared plans.
func RecordCommand(config Config, name string, runCount int, firstRun bool) command.Command {
	if firstRun {
		return &command.Insert{
			Table: config.Name(),
			Values: []command.ColumnValue{
				{Column: "name", Value: name},
				{Column: "run_count", Value: runCount},
			},
		}
	}
	return &command.Update{
		Table: config.Name(),
		Set:   []command.ColumnValue{{Column: "run_count", Value: runCount}},
		Where: []command.ColumnValue{{Column: "name", Value: name}},
	}
}

// Record stores the run count of a script.
func (j *Journal) Record(ctx context.Context, name string, runCount int, firstRun bool) error {
	statements, err := j.conn.CreateDumper().RenderCommand(j.RecordCommand(name, runCount, firstRun))
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if err := j.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to record %s in journal: %w", name, err)
		}
	}
	return nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
