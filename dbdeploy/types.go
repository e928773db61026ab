package dbdeploy

import (
	"github.com/dbgate/dbdeploy/internal/deploy"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/diff"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/ignore"
	"github.com/dbgate/dbdeploy/internal/journal"
	"github.com/dbgate/dbdeploy/internal/plan"
	"github.com/dbgate/dbdeploy/model"
)

// Re-export important types for external consumption

// ConnectionConfig holds connection details for a target database.
type ConnectionConfig = driver.Config

// Engine names a database server family.
type Engine = dialect.Engine

// Supported engines.
const (
	Postgres    = dialect.Postgres
	CockroachDB = dialect.CockroachDB
	MySQL       = dialect.MySQL
	SQLServer   = dialect.SQLServer
	SQLite      = dialect.SQLite
)

// Plan represents a deploy plan that can be executed against a database.
type Plan = plan.Plan

// Fragment is one file of a deploy model.
type Fragment = deploy.Fragment

// NewFragment parses a model file from its name and content.
var NewFragment = deploy.NewFragment

// JournalConfig names the deploy journal table.
type JournalConfig = journal.Config

// DiffOptions tunes structure comparison.
type DiffOptions = diff.Options

// ExecError is a failed statement of a deploy.
type ExecError = deploy.ExecError

// DatabaseInfo is the analysed or modelled structure of a database.
type DatabaseInfo = model.DatabaseInfo

// TableInfo represents a table with its columns, keys, indexes and preloaded rows.
type TableInfo = model.TableInfo

// ColumnInfo represents a table column.
type ColumnInfo = model.ColumnInfo

// SQLObjectInfo represents a view, materialized view, procedure or function.
type SQLObjectInfo = model.SQLObjectInfo

// IgnoreConfig represents configuration for ignoring tables during analysis.
type IgnoreConfig = ignore.IgnoreConfig
