package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func openSQLite(t *testing.T) *Conn {
	t.Helper()
	conn, err := Open(context.Background(), Config{Engine: dialect.SQLite, File: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSQLiteAnalyseFull(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)

	if conn.Dialect().Engine != dialect.SQLite || conn.Dialect().ServerVersion == "" {
		t.Fatalf("Dialect() = %+v, want sqlite with a server version", conn.Dialect())
	}

	err := conn.Script(ctx, `
		CREATE TABLE "t1" (
			"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			"val" varchar(50) DEFAULT 'x',
			"ref" int REFERENCES "t0" ("id") ON DELETE CASCADE
		);
		CREATE INDEX "ix_val" ON "t1" ("val" DESC) WHERE val IS NOT NULL;
		CREATE TABLE t0 (id int PRIMARY KEY, code varchar(10), UNIQUE (code));
		CREATE VIEW v1 AS SELECT id FROM t1;
	`)
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}

	db, err := conn.AnalyseFull(ctx)
	if err != nil {
		t.Fatalf("AnalyseFull() error = %v", err)
	}

	want := model.DatabaseInfo{
		Tables: []model.TableInfo{
			{
				ObjectID: "t0",
				PureName: "t0",
				Columns: []model.ColumnInfo{
					{ColumnName: "id", DataType: "int"},
					{ColumnName: "code", DataType: "varchar(10)"},
				},
				PrimaryKey: &model.PrimaryKeyInfo{Columns: []model.IndexColumn{{ColumnName: "id"}}},
				Uniques:    []model.UniqueInfo{{Columns: []model.IndexColumn{{ColumnName: "code"}}}},
			},
			{
				ObjectID: "t1",
				PureName: "t1",
				Columns: []model.ColumnInfo{
					{ColumnName: "id", DataType: "INTEGER", NotNull: true, AutoIncrement: true},
					{ColumnName: "val", DataType: "varchar(50)", DefaultValue: model.StringPtr("'x'")},
					{ColumnName: "ref", DataType: "int"},
				},
				PrimaryKey: &model.PrimaryKeyInfo{Columns: []model.IndexColumn{{ColumnName: "id"}}},
				ForeignKeys: []model.ForeignKeyInfo{{
					RefTableName: "t0",
					Columns:      []model.ColumnReference{{ColumnName: "ref", RefColumnName: "id"}},
					UpdateAction: "NO ACTION",
					DeleteAction: "CASCADE",
				}},
				Indexes: []model.IndexInfo{{
					ConstraintName: "ix_val",
					Columns:        []model.IndexColumn{{ColumnName: "val", IsDescending: true}},
					Filter:         "val IS NOT NULL",
				}},
			},
		},
		Views: []model.SQLObjectInfo{{
			ObjectType: model.ObjectTypeView,
			ObjectID:   "v1",
			PureName:   "v1",
			CreateSQL:  "CREATE VIEW v1 AS SELECT id FROM t1",
		}},
	}
	ignoreHashes := cmp.Options{
		cmpopts.IgnoreFields(model.TableInfo{}, "ContentHash"),
		cmpopts.IgnoreFields(model.SQLObjectInfo{}, "ContentHash"),
	}
	if diff := cmp.Diff(want, *db, ignoreHashes); diff != "" {
		t.Errorf("AnalyseFull() mismatch (-want +got):\n%s", diff)
	}
	for _, tbl := range db.Tables {
		if tbl.ContentHash == "" {
			t.Errorf("table %s has no content hash", tbl.PureName)
		}
	}
}

func TestSQLiteAnalyseIncremental(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	if err := conn.Script(ctx, "CREATE TABLE a (id int); CREATE TABLE b (id int);"); err != nil {
		t.Fatal(err)
	}
	previous, err := conn.AnalyseFull(ctx)
	if err != nil {
		t.Fatal(err)
	}

	unchanged, err := conn.AnalyseIncremental(ctx, previous)
	if err != nil {
		t.Fatalf("AnalyseIncremental() error = %v", err)
	}
	if unchanged != nil {
		t.Fatalf("AnalyseIncremental() = %+v, want nil without changes", unchanged)
	}

	if err := conn.Exec(ctx, "ALTER TABLE b ADD COLUMN val text"); err != nil {
		t.Fatal(err)
	}
	changed, err := conn.AnalyseIncremental(ctx, previous)
	if err != nil {
		t.Fatalf("AnalyseIncremental() error = %v", err)
	}
	if changed == nil || len(changed.Tables) != 2 {
		t.Fatalf("AnalyseIncremental() = %+v, want two tables", changed)
	}
	if got := len(changed.Tables[1].Columns); got != 2 {
		t.Errorf("table b has %d columns after incremental analysis, want 2", got)
	}
	if changed.Tables[0].ContentHash != previous.Tables[0].ContentHash {
		t.Errorf("content hash of unchanged table a changed")
	}
}

func TestQueryReturnsRows(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	if err := conn.Script(ctx, "CREATE TABLE a (id int, name text); INSERT INTO a VALUES (1, 'one'), (2, 'two');"); err != nil {
		t.Fatal(err)
	}
	res, err := conn.Query(ctx, "SELECT id, name FROM a ORDER BY id")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := &QueryResult{
		Columns: []string{"id", "name"},
		Rows: []map[string]any{
			{"id": int64(1), "name": "one"},
			{"id": int64(2), "name": "two"},
		},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptStopsAtFailingStatement(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	err := conn.Script(ctx, "CREATE TABLE a (id int); INSERT INTO missing VALUES (1); CREATE TABLE b (id int);")
	if err == nil {
		t.Fatal("Script() succeeded, want an error")
	}
	db, err := conn.AnalyseFull(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(db.Tables) != 1 {
		t.Errorf("Script() continued after the failing statement: %+v", db.Tables)
	}
}
