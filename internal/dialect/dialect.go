// Package dialect describes what each supported engine can do. The diff engines consult the
// capability record instead of switching on the engine.
package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// Engine identifies a database engine family.
type Engine string

const (
	Postgres    Engine = "postgres"
	CockroachDB Engine = "cockroach"
	MySQL       Engine = "mysql"
	SQLServer   Engine = "mssql"
	SQLite      Engine = "sqlite"
)

// ErrUnsupportedEngine is returned for engine names this module does not know.
var ErrUnsupportedEngine = errors.New("unsupported engine")

// Engines lists the supported engines.
var Engines = []Engine{Postgres, CockroachDB, MySQL, SQLServer, SQLite}

// ParseEngine resolves an engine name, accepting the usual aliases.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "cockroach", "cockroachdb", "crdb":
		return CockroachDB, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "mssql", "sqlserver":
		return SQLServer, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, name)
}

// Capabilities is the plain capability record of one engine.
type Capabilities struct {
	Engine        Engine
	ServerVersion string

	SupportsSchemas bool
	DefaultSchema   string

	// RenameColumn is false when a column rename must fall back to drop and add.
	RenameColumn bool
	DropColumn   bool
	// AlterColumn covers changing type, nullability and default of an existing column.
	AlterColumn bool
	// AlterConstraints covers adding and dropping primary keys, uniques and foreign keys on an
	// existing table.
	AlterConstraints bool
	// RecreateTable means unsupported alterations can be replaced with a table rebuild.
	RecreateTable bool

	RenameSQLObject bool
	TableComments   bool
	ColumnComments  bool

	// SetNullDefaultInsteadOfDrop renders a removed default as SET DEFAULT NULL.
	SetNullDefaultInsteadOfDrop bool
	// OmitTableAliases means queries must not alias tables.
	OmitTableAliases bool
	// IdentityColumns selects GENERATED ... AS IDENTITY over serial types.
	IdentityColumns bool
}

// For returns the capabilities of an engine. serverVersion may be empty, in which case the
// capabilities of a current server release are assumed.
func For(engine Engine, serverVersion string) (Capabilities, error) {
	var caps Capabilities
	switch engine {
	case Postgres:
		caps = Capabilities{
			SupportsSchemas:  true,
			DefaultSchema:    "public",
			RenameColumn:     true,
			DropColumn:       true,
			AlterColumn:      true,
			AlterConstraints: true,
			RenameSQLObject:  true,
			TableComments:    true,
			ColumnComments:   true,
			IdentityColumns:  atLeast(serverVersion, "10"),
		}
	case CockroachDB:
		caps = Capabilities{
			SupportsSchemas:  true,
			DefaultSchema:    "public",
			RenameColumn:     true,
			DropColumn:       true,
			AlterColumn:      true,
			AlterConstraints: true,
			TableComments:    true,
			ColumnComments:   true,
		}
	case MySQL:
		caps = Capabilities{
			RenameColumn:     true,
			DropColumn:       true,
			AlterColumn:      true,
			AlterConstraints: true,
			TableComments:    true,
			ColumnComments:   true,
		}
	case SQLServer:
		caps = Capabilities{
			SupportsSchemas:  true,
			DefaultSchema:    "dbo",
			RenameColumn:     true,
			DropColumn:       true,
			AlterColumn:      true,
			AlterConstraints: true,
			RenameSQLObject:  true,
			TableComments:    true,
			ColumnComments:   true,
		}
	case SQLite:
		caps = Capabilities{
			RenameColumn:     atLeast(serverVersion, "3.25.0"),
			DropColumn:       atLeast(serverVersion, "3.35.0"),
			RecreateTable:    true,
			OmitTableAliases: true,
		}
	default:
		return Capabilities{}, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}
	caps.Engine = engine
	caps.ServerVersion = serverVersion
	return caps, nil
}

// MustFor is For for engines known to be valid.
func MustFor(engine Engine) Capabilities {
	caps, err := For(engine, "")
	if err != nil {
		panic(err)
	}
	return caps
}

// atLeast reports whether serverVersion >= minimum. Unknown or unparsable versions count as
// recent.
func atLeast(serverVersion, minimum string) bool {
	if serverVersion == "" {
		return true
	}
	current, err := version.NewVersion(cleanVersion(serverVersion))
	if err != nil {
		return true
	}
	return current.GreaterThanOrEqual(version.Must(version.NewVersion(minimum)))
}

// cleanVersion strips vendor suffixes such as "15.4 (Debian 15.4-1.pgdg120+1)" or
// "8.0.36-0ubuntu0.22.04.1".
func cleanVersion(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, " ("); i > 0 {
		v = v[:i]
	}
	v = strings.TrimPrefix(v, "v")
	return v
}
