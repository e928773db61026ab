package driver

import (
	"errors"
	"testing"

	"github.com/dbgate/dbdeploy/internal/dialect"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "postgres",
			config: Config{Engine: dialect.Postgres, Host: "db", Database: "app", User: "admin", Password: "secret", SSLMode: "disable"},
			want:   "host=db port=5432 dbname=app user=admin password=secret sslmode=disable",
		},
		{
			name:   "cockroach default port",
			config: Config{Engine: dialect.CockroachDB, Database: "app", User: "root"},
			want:   "host=localhost port=26257 dbname=app user=root",
		},
		{
			name:   "mysql",
			config: Config{Engine: dialect.MySQL, Host: "db", Port: 3307, Database: "app", User: "root", Password: "pw"},
			want:   "root:pw@tcp(db:3307)/app",
		},
		{
			name:   "sql server",
			config: Config{Engine: dialect.SQLServer, Host: "db", Database: "app", User: "sa", Password: "pw"},
			want:   "sqlserver://sa:pw@db:1433?database=app",
		},
		{
			name:   "sqlite",
			config: Config{Engine: dialect.SQLite, File: "/tmp/app.db"},
			want:   "/tmp/app.db",
		},
		{
			name:   "explicit dsn wins",
			config: Config{Engine: dialect.Postgres, DSN: "postgres://x@y/z", Host: "ignored"},
			want:   "postgres://x@y/z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.BuildDSN()
			if err != nil {
				t.Fatalf("BuildDSN() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSNErrors(t *testing.T) {
	if _, err := (Config{Engine: dialect.SQLite}).BuildDSN(); err == nil {
		t.Error("BuildDSN() without a sqlite file succeeded")
	}
	_, err := (Config{Engine: "oracle"}).BuildDSN()
	if !errors.Is(err, dialect.ErrUnsupportedEngine) {
		t.Errorf("BuildDSN() error = %v, want ErrUnsupportedEngine", err)
	}
}

func TestConfigStringHidesPassword(t *testing.T) {
	s := Config{Engine: dialect.Postgres, Host: "db", Database: "app", User: "admin", Password: "secret"}.String()
	if want := "postgres://admin@db:5432/app"; s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
}
