package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("TEST_STRING", "test-value")
	t.Setenv("EMPTY_VAR", "")

	if got := GetEnvWithDefault("TEST_STRING", "default"); got != "test-value" {
		t.Errorf("GetEnvWithDefault(TEST_STRING) = %q, want %q", got, "test-value")
	}
	if got := GetEnvWithDefault("DBDEPLOY_TEST_MISSING_VAR", "default"); got != "default" {
		t.Errorf("GetEnvWithDefault(missing) = %q, want %q", got, "default")
	}
	if got := GetEnvWithDefault("EMPTY_VAR", "default"); got != "default" {
		t.Errorf("GetEnvWithDefault(EMPTY_VAR) = %q, want %q", got, "default")
	}
}

func TestGetEnvIntWithDefault(t *testing.T) {
	t.Setenv("TEST_INT", "12345")
	t.Setenv("TEST_INVALID_INT", "not-a-number")

	tests := []struct {
		env  string
		def  int
		want int
	}{
		{"TEST_INT", 0, 12345},
		{"TEST_INVALID_INT", 999, 999},
		{"DBDEPLOY_TEST_MISSING_INT", 777, 777},
	}
	for _, tt := range tests {
		if got := GetEnvIntWithDefault(tt.env, tt.def); got != tt.want {
			t.Errorf("GetEnvIntWithDefault(%s, %d) = %d, want %d", tt.env, tt.def, got, tt.want)
		}
	}
}

func newConnectionCommand(flags *ConnectionFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(cmd *cobra.Command, args []string) error { return nil }}
	flags.Register(cmd)
	return cmd
}

func TestConnectionFlagsPostgresEnvironment(t *testing.T) {
	AppFs = afero.NewMemMapFs()
	t.Setenv("PGDATABASE", "env-db")
	t.Setenv("PGUSER", "env-user")
	t.Setenv("PGHOST", "env-host")
	t.Setenv("PGPORT", "1234")

	var flags ConnectionFlags
	cmd := newConnectionCommand(&flags)
	if err := cmd.ParseFlags([]string{"--user", "flag-user"}); err != nil {
		t.Fatal(err)
	}

	config, err := flags.Resolve(cmd)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if config.Engine != dialect.Postgres {
		t.Errorf("Engine = %s, want postgres", config.Engine)
	}
	if config.Database != "env-db" || config.Host != "env-host" || config.Port != 1234 {
		t.Errorf("environment not applied: %+v", config)
	}
	if config.User != "flag-user" {
		t.Errorf("User = %q, explicit flag should win over PGUSER", config.User)
	}
}

func TestConnectionFlagsPgEnvironmentOnlyForPostgres(t *testing.T) {
	AppFs = afero.NewMemMapFs()
	t.Setenv("PGDATABASE", "env-db")

	var flags ConnectionFlags
	cmd := newConnectionCommand(&flags)
	if err := cmd.ParseFlags([]string{"--engine", "mysql", "--user", "root"}); err != nil {
		t.Fatal(err)
	}
	_, err := flags.Resolve(cmd)
	if err == nil || !strings.Contains(err.Error(), "database name is required") {
		t.Errorf("Resolve() error = %v, want missing database name", err)
	}
}

func TestConnectionFlagsSQLite(t *testing.T) {
	AppFs = afero.NewMemMapFs()
	if err := afero.WriteFile(AppFs, ".dbdeployignore", []byte("[tables]\npatterns = [\"tmp_*\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var flags ConnectionFlags
	cmd := newConnectionCommand(&flags)
	if err := cmd.ParseFlags([]string{"--engine", "sqlite"}); err != nil {
		t.Fatal(err)
	}
	if _, err := flags.Resolve(cmd); err == nil {
		t.Fatal("Resolve() expected error without a database file")
	}

	if err := cmd.ParseFlags([]string{"--database-file", "app.db"}); err != nil {
		t.Fatal(err)
	}
	config, err := flags.Resolve(cmd)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if config.File != "app.db" {
		t.Errorf("File = %q, want app.db", config.File)
	}
	if config.IgnoreConfig == nil || !config.IgnoreConfig.ShouldIgnoreTable("tmp_data") {
		t.Errorf("ignore file was not loaded: %+v", config.IgnoreConfig)
	}
}

func TestConnectionFlagsUnknownEngine(t *testing.T) {
	var flags ConnectionFlags
	cmd := newConnectionCommand(&flags)
	if err := cmd.ParseFlags([]string{"--engine", "oracle"}); err != nil {
		t.Fatal(err)
	}
	if _, err := flags.Resolve(cmd); err == nil {
		t.Error("Resolve() expected error for an unknown engine")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	AppFs = afero.NewMemMapFs()
	db := &model.DatabaseInfo{
		Tables: []model.TableInfo{{
			PureName: "users",
			Columns:  []model.ColumnInfo{{ColumnName: "id", DataType: "int", NotNull: true}},
			PrimaryKey: &model.PrimaryKeyInfo{
				Columns: []model.IndexColumn{{ColumnName: "id"}},
			},
		}},
		Views: []model.SQLObjectInfo{{ObjectType: model.ObjectTypeView, PureName: "v", CreateSQL: "CREATE VIEW v AS SELECT 1"}},
	}

	for _, path := range []string{"snapshot.yaml", "snapshot.json"} {
		t.Run(path, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteSnapshot(&buf, db, FormatForPath(path)); err != nil {
				t.Fatalf("WriteSnapshot() error = %v", err)
			}
			if err := WriteOutput(nil, path, buf.String()); err != nil {
				t.Fatal(err)
			}
			got, err := ReadSnapshot(AppFs, path)
			if err != nil {
				t.Fatalf("ReadSnapshot() error = %v", err)
			}
			if diff := cmp.Diff(db, got); diff != "" {
				t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSnapshotFormat(t *testing.T) {
	for in, want := range map[string]SnapshotFormat{"yaml": FormatYAML, "YML": FormatYAML, "json": FormatJSON} {
		got, err := ParseSnapshotFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseSnapshotFormat(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseSnapshotFormat("toml"); err == nil {
		t.Error("ParseSnapshotFormat(toml) expected error")
	}
}
