package dialect

import (
	"errors"
	"testing"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		input string
		want  Engine
	}{
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{"crdb", CockroachDB},
		{"mariadb", MySQL},
		{"sqlserver", SQLServer},
		{" sqlite3 ", SQLite},
	}
	for _, tt := range tests {
		got, err := ParseEngine(tt.input)
		if err != nil {
			t.Fatalf("ParseEngine(%q) error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseEngine(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}

	if _, err := ParseEngine("oracle"); !errors.Is(err, ErrUnsupportedEngine) {
		t.Errorf("ParseEngine(oracle) error = %v; want ErrUnsupportedEngine", err)
	}
}

func TestForSQLiteVersionGating(t *testing.T) {
	tests := []struct {
		version      string
		renameColumn bool
		dropColumn   bool
	}{
		{"3.22.0", false, false},
		{"3.25.0", true, false},
		{"3.34.1", true, false},
		{"3.35.0", true, true},
		{"3.45.1", true, true},
		{"", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			caps, err := For(SQLite, tt.version)
			if err != nil {
				t.Fatalf("For() error: %v", err)
			}
			if caps.RenameColumn != tt.renameColumn {
				t.Errorf("RenameColumn = %v; want %v", caps.RenameColumn, tt.renameColumn)
			}
			if caps.DropColumn != tt.dropColumn {
				t.Errorf("DropColumn = %v; want %v", caps.DropColumn, tt.dropColumn)
			}
			if caps.AlterColumn || caps.AlterConstraints {
				t.Errorf("sqlite must not alter columns or constraints in place")
			}
			if !caps.RecreateTable {
				t.Errorf("sqlite must fall back to table recreation")
			}
		})
	}
}

func TestForPostgresIdentityColumns(t *testing.T) {
	old, err := For(Postgres, "9.6.24")
	if err != nil {
		t.Fatal(err)
	}
	if old.IdentityColumns {
		t.Errorf("postgres 9.6 does not support identity columns")
	}

	current, err := For(Postgres, "16.2 (Debian 16.2-1.pgdg120+2)")
	if err != nil {
		t.Fatal(err)
	}
	if !current.IdentityColumns {
		t.Errorf("postgres 16 supports identity columns")
	}
	if current.DefaultSchema != "public" || !current.SupportsSchemas {
		t.Errorf("unexpected schema capabilities: %+v", current)
	}
}

func TestForUnknownEngine(t *testing.T) {
	if _, err := For(Engine("db2"), ""); !errors.Is(err, ErrUnsupportedEngine) {
		t.Errorf("For(db2) error = %v; want ErrUnsupportedEngine", err)
	}
}
