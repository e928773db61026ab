package driver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbgate/dbdeploy/internal/analyser"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

// Conn is an open connection to one database
type Conn struct {
	db       *sql.DB
	config   Config
	caps     dialect.Capabilities
	analyser *analyser.Analyser
}

// Open connects to the database described by config and detects the server version.
func Open(ctx context.Context, config Config) (*Conn, error) {
	log := logger.Get()
	driverName, err := config.DriverName()
	if err != nil {
		return nil, err
	}
	dsn, err := config.BuildDSN()
	if err != nil {
		return nil, err
	}

	log.Debug("Attempting database connection", "target", config.String(), "driver", driverName)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		log.Debug("Database connection failed", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Debug("Database ping failed", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if config.Engine == dialect.SQLite {
		// one connection keeps temporary state and pragmas consistent
		db.SetMaxOpenConns(1)
	}

	conn, err := Wrap(ctx, db, config)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("Database connection established successfully", "serverVersion", conn.caps.ServerVersion)
	return conn, nil
}

// Wrap builds a Conn over an already open database handle. Closing the Conn closes db.
func Wrap(ctx context.Context, db *sql.DB, config Config) (*Conn, error) {
	serverVersion, err := detectServerVersion(ctx, db, config.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to detect server version: %w", err)
	}
	caps, err := dialect.For(config.Engine, serverVersion)
	if err != nil {
		return nil, err
	}
	catalog, err := analyser.NewCatalog(db, caps)
	if err != nil {
		return nil, err
	}
	return &Conn{
		db:       db,
		config:   config,
		caps:     caps,
		analyser: analyser.New(catalog, config.IgnoreConfig),
	}, nil
}

func detectServerVersion(ctx context.Context, db *sql.DB, engine dialect.Engine) (string, error) {
	var query string
	switch engine {
	case dialect.Postgres:
		query = "SHOW server_version"
	case dialect.CockroachDB:
		// capabilities of cockroach are not version gated
		return "", nil
	case dialect.MySQL:
		query = "SELECT VERSION()"
	case dialect.SQLServer:
		query = "SELECT CAST(SERVERPROPERTY('ProductVersion') AS nvarchar(128))"
	case dialect.SQLite:
		query = "SELECT sqlite_version()"
	default:
		return "", fmt.Errorf("%w: %q", dialect.ErrUnsupportedEngine, engine)
	}
	var v string
	if err := db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// Close closes the underlying database handle
func (c *Conn) Close() error {
	return c.db.Close()
}

// DB returns the underlying database handle
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Config returns the configuration the connection was opened with
func (c *Conn) Config() Config {
	return c.config
}

// Dialect returns the capabilities of the connected server
func (c *Conn) Dialect() dialect.Capabilities {
	return c.caps
}

// CreateDumper returns a fresh renderer for the connected engine
func (c *Conn) CreateDumper() render.Renderer {
	r, err := render.New(c.caps)
	if err != nil {
		// the engine was validated when the connection was opened
		panic(err)
	}
	return r
}

// Exec executes one statement, logging it in debug mode.
func (c *Conn) Exec(ctx context.Context, stmt string, args ...any) error {
	isDebug := logger.IsDebug()
	if isDebug {
		logger.Get().Debug("Executing SQL", "sql", stmt)
	}
	_, err := c.db.ExecContext(ctx, stmt, args...)
	if isDebug {
		if err != nil {
			logger.Get().Debug("SQL execution failed", "error", err)
		} else {
			logger.Get().Debug("SQL execution succeeded")
		}
	}
	return err
}

// Script splits a script into statements and executes them in order. Execution stops at the
// first failing statement or when ctx is cancelled.
func (c *Conn) Script(ctx context.Context, script string) error {
	for _, stmt := range SplitStatements(c.caps.Engine, script) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %q: %w", stmt, err)
		}
	}
	return nil
}

// QueryResult holds the rows of a query. Byte values are returned as strings.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// Query runs a query and reads all rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	logger.Get().Debug("Running query", "sql", query)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

// AnalyseFull reads the complete structure of the database.
func (c *Conn) AnalyseFull(ctx context.Context) (*model.DatabaseInfo, error) {
	return c.analyser.Full(ctx)
}

// AnalyseIncremental re-reads what changed since previous; nil means nothing changed.
func (c *Conn) AnalyseIncremental(ctx context.Context, previous *model.DatabaseInfo) (*model.DatabaseInfo, error) {
	return c.analyser.Incremental(ctx, previous)
}
