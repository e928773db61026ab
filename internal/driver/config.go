// Package driver connects to the supported engines and exposes the small surface the deploy
// engine needs: queries, scripts, analysis and a renderer for the engine's dialect.
package driver

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/ignore"
	"github.com/go-sql-driver/mysql"
)

// Config holds connection parameters. DSN, when set, is passed to the driver unchanged.
type Config struct {
	Engine          dialect.Engine
	DSN             string
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
	// File is the database file of SQLite connections.
	File string

	IgnoreConfig *ignore.IgnoreConfig
}

// DefaultPort returns the usual port of an engine.
func DefaultPort(engine dialect.Engine) int {
	switch engine {
	case dialect.Postgres:
		return 5432
	case dialect.CockroachDB:
		return 26257
	case dialect.MySQL:
		return 3306
	case dialect.SQLServer:
		return 1433
	}
	return 0
}

// DriverName returns the database/sql driver registered for the engine.
func (c Config) DriverName() (string, error) {
	switch c.Engine {
	case dialect.Postgres, dialect.CockroachDB:
		return "pgx", nil
	case dialect.MySQL:
		return "mysql", nil
	case dialect.SQLServer:
		return "sqlserver", nil
	case dialect.SQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("%w: %q", dialect.ErrUnsupportedEngine, c.Engine)
}

func (c Config) port() int {
	if c.Port != 0 {
		return c.Port
	}
	return DefaultPort(c.Engine)
}

func (c Config) host() string {
	if c.Host != "" {
		return c.Host
	}
	return "localhost"
}

// BuildDSN constructs the connection string of the configured engine
func (c Config) BuildDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Engine {
	case dialect.Postgres, dialect.CockroachDB:
		var parts []string
		parts = append(parts, fmt.Sprintf("host=%s", c.host()))
		parts = append(parts, fmt.Sprintf("port=%d", c.port()))
		parts = append(parts, fmt.Sprintf("dbname=%s", c.Database))
		parts = append(parts, fmt.Sprintf("user=%s", c.User))
		if c.Password != "" {
			parts = append(parts, fmt.Sprintf("password=%s", c.Password))
		}
		if c.SSLMode != "" {
			parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
		}
		if c.ApplicationName != "" {
			parts = append(parts, fmt.Sprintf("application_name=%s", c.ApplicationName))
		}
		return strings.Join(parts, " "), nil

	case dialect.MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.host(), strconv.Itoa(c.port()))
		cfg.DBName = c.Database
		if c.ApplicationName != "" {
			cfg.ConnectionAttributes = "program_name:" + c.ApplicationName
		}
		return cfg.FormatDSN(), nil

	case dialect.SQLServer:
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.host(), strconv.Itoa(c.port())),
		}
		q := url.Values{}
		q.Set("database", c.Database)
		if c.ApplicationName != "" {
			q.Set("app name", c.ApplicationName)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil

	case dialect.SQLite:
		if c.File == "" {
			return "", fmt.Errorf("sqlite connection requires a database file")
		}
		return c.File, nil
	}
	return "", fmt.Errorf("%w: %q", dialect.ErrUnsupportedEngine, c.Engine)
}

// String describes the target without credentials.
func (c Config) String() string {
	switch {
	case c.Engine == dialect.SQLite:
		return fmt.Sprintf("%s:%s", c.Engine, c.File)
	case c.DSN != "":
		return string(c.Engine)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Engine, c.User, c.host(), c.port(), c.Database)
}
