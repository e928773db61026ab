package diff

import (
	"testing"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
	"github.com/google/go-cmp/cmp"
)

func col(name, dataType string) model.ColumnInfo {
	return model.ColumnInfo{ColumnName: name, DataType: dataType}
}

func notNull(c model.ColumnInfo) model.ColumnInfo {
	c.NotNull = true
	return c
}

func withID(c model.ColumnInfo, id string) model.ColumnInfo {
	c.PairingID = id
	return c
}

func table(name string, cols ...model.ColumnInfo) model.TableInfo {
	return model.TableInfo{SchemaName: "public", PureName: name, Columns: cols}
}

func withPK(t model.TableInfo, cols ...string) model.TableInfo {
	pk := &model.PrimaryKeyInfo{}
	for _, c := range cols {
		pk.Columns = append(pk.Columns, model.IndexColumn{ColumnName: c})
	}
	t.PrimaryKey = pk
	return t
}

// renderSQL renders commands with the renderer of caps.
func renderSQL(t *testing.T, caps dialect.Capabilities, cmds []command.Command) []string {
	t.Helper()
	r, err := render.New(caps)
	if err != nil {
		t.Fatalf("render.New() error = %v", err)
	}
	stmts, err := r.Statements(cmds)
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	return stmts
}

func alterTableSQL(t *testing.T, oldTable, newTable model.TableInfo, opts Options, caps dialect.Capabilities) []string {
	t.Helper()
	oldDb := model.DatabaseInfo{Tables: []model.TableInfo{oldTable}}
	newDb := model.DatabaseInfo{Tables: []model.TableInfo{newTable}}
	return renderSQL(t, caps, AlterTable(oldTable, newTable, opts, oldDb, newDb, caps))
}

func TestAlterTable(t *testing.T) {
	pg := dialect.MustFor(dialect.Postgres)
	nullDefaults := pg
	nullDefaults.SetNullDefaultInsteadOfDrop = true
	soft := Options{DeletedColumnPrefix: "_deleted_"}

	tests := []struct {
		name     string
		oldTable model.TableInfo
		newTable model.TableInfo
		opts     Options
		caps     dialect.Capabilities
		want     []string
	}{
		{
			name: "rename detected through pairing id",
			oldTable: func() model.TableInfo {
				t := withPK(table("t1", withID(notNull(col("id", "int")), "c1"), withID(col("val1", "int"), "c2")), "id")
				t.Indexes = []model.IndexInfo{{ConstraintName: "ix_val", Columns: []model.IndexColumn{{ColumnName: "val1"}}}}
				return t
			}(),
			newTable: func() model.TableInfo {
				t := withPK(table("t1", withID(notNull(col("id", "int")), "c1"), withID(col("val2", "int"), "c2")), "id")
				t.Indexes = []model.IndexInfo{{ConstraintName: "ix_val", Columns: []model.IndexColumn{{ColumnName: "val2"}}}}
				return t
			}(),
			caps: pg,
			want: []string{`ALTER TABLE "public"."t1" RENAME COLUMN "val1" TO "val2"`},
		},
		{
			name:     "different pairing ids are a drop and an add",
			oldTable: table("t1", withID(col("id", "int"), "c1"), withID(col("a", "int"), "c2")),
			newTable: table("t1", withID(col("id", "int"), "c1"), withID(col("b", "text"), "c3")),
			caps:     pg,
			want: []string{
				`ALTER TABLE "public"."t1" DROP COLUMN "a"`,
				`ALTER TABLE "public"."t1" ADD COLUMN "b" text`,
			},
		},
		{
			name:     "removed column is soft deleted",
			oldTable: table("t1", col("id", "int"), notNull(col("a", "int"))),
			newTable: table("t1", col("id", "int")),
			opts:     soft,
			caps:     pg,
			want: []string{
				`ALTER TABLE "public"."t1" RENAME COLUMN "a" TO "_deleted_a"`,
				`ALTER TABLE "public"."t1" ALTER COLUMN "_deleted_a" DROP NOT NULL`,
			},
		},
		{
			name:     "soft deleted column is restored",
			oldTable: table("t1", col("id", "int"), col("_deleted_a", "int")),
			newTable: table("t1", col("id", "int"), notNull(col("a", "int"))),
			opts:     soft,
			caps:     pg,
			want: []string{
				`ALTER TABLE "public"."t1" RENAME COLUMN "_deleted_a" TO "a"`,
				`ALTER TABLE "public"."t1" ALTER COLUMN "a" SET NOT NULL`,
			},
		},
		{
			name:     "already deleted column is left alone",
			oldTable: table("t1", col("id", "int"), col("_deleted_a", "int")),
			newTable: table("t1", col("id", "int")),
			opts:     soft,
			caps:     pg,
		},
		{
			name:     "no drop column keeps the column",
			oldTable: table("t1", col("id", "int"), col("a", "int")),
			newTable: table("t1", col("id", "int")),
			opts:     Options{NoDropColumn: true},
			caps:     pg,
		},
		{
			name:     "removed default is dropped",
			oldTable: table("t1", model.ColumnInfo{ColumnName: "a", DataType: "int", DefaultValue: model.StringPtr("1")}),
			newTable: table("t1", col("a", "int")),
			caps:     pg,
			want:     []string{`ALTER TABLE "public"."t1" ALTER COLUMN "a" DROP DEFAULT`},
		},
		{
			name:     "removed default set to null when the engine asks for it",
			oldTable: table("t1", model.ColumnInfo{ColumnName: "a", DataType: "int", DefaultValue: model.StringPtr("1")}),
			newTable: table("t1", col("a", "int")),
			caps:     nullDefaults,
			want:     []string{`ALTER TABLE "public"."t1" ALTER COLUMN "a" SET DEFAULT NULL`},
		},
		{
			name:     "equivalent defaults and type aliases are unchanged",
			oldTable: table("t1", model.ColumnInfo{ColumnName: "a", DataType: "integer", DefaultValue: model.StringPtr("('x'::text)")}),
			newTable: table("t1", model.ColumnInfo{ColumnName: "a", DataType: "int4", DefaultValue: model.StringPtr("'x'")}),
			caps:     pg,
		},
		{
			name:     "changed index is recreated",
			oldTable: model.TableInfo{SchemaName: "public", PureName: "t1", Columns: []model.ColumnInfo{col("a", "int"), col("b", "int")}, Indexes: []model.IndexInfo{{ConstraintName: "ix", Columns: []model.IndexColumn{{ColumnName: "a"}}}}},
			newTable: model.TableInfo{SchemaName: "public", PureName: "t1", Columns: []model.ColumnInfo{col("a", "int"), col("b", "int")}, Indexes: []model.IndexInfo{{ConstraintName: "ix", Columns: []model.IndexColumn{{ColumnName: "a"}, {ColumnName: "b"}}}}},
			caps:     pg,
			want: []string{
				`DROP INDEX "public"."ix"`,
				`CREATE INDEX "ix" ON "public"."t1" ("a", "b")`,
			},
		},
		{
			name:     "primary key change",
			oldTable: withPK(table("t1", notNull(col("a", "int")), notNull(col("b", "int"))), "a"),
			newTable: withPK(table("t1", notNull(col("a", "int")), notNull(col("b", "int"))), "a", "b"),
			caps:     pg,
			want: []string{
				`ALTER TABLE "public"."t1" DROP CONSTRAINT "t1_pkey"`,
				`ALTER TABLE "public"."t1" ADD PRIMARY KEY ("a", "b")`,
			},
		},
		{
			name:     "comments",
			oldTable: table("t1", col("a", "int")),
			newTable: func() model.TableInfo {
				t := table("t1", model.ColumnInfo{ColumnName: "a", DataType: "int", ColumnComment: "the a"})
				t.ObjectComment = "the table"
				return t
			}(),
			caps: pg,
			want: []string{
				`COMMENT ON COLUMN "public"."t1"."a" IS 'the a'`,
				`COMMENT ON TABLE "public"."t1" IS 'the table'`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alterTableSQL(t, tt.oldTable, tt.newTable, tt.opts, tt.caps)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AlterTable() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlterTablePositionalPairing(t *testing.T) {
	pg := dialect.MustFor(dialect.Postgres)
	oldDb := model.DatabaseInfo{Tables: []model.TableInfo{table("t1", col("id", "int"), col("val1", "int"))}}
	newDb := model.DatabaseInfo{Tables: []model.TableInfo{table("t1", col("id", "int"), col("val2", "int"))}}

	paired := AlterDatabase(model.GenerateDbPairingID(oldDb), model.GenerateDbPairingID(newDb), Options{}, pg)
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."t1" RENAME COLUMN "val1" TO "val2"`}, renderSQL(t, pg, paired.Commands)); diff != "" {
		t.Errorf("with pairing ids (-want +got):\n%s", diff)
	}

	byName := AlterDatabase(oldDb, newDb, Options{}, pg)
	want := []string{
		`ALTER TABLE "public"."t1" DROP COLUMN "val1"`,
		`ALTER TABLE "public"."t1" ADD COLUMN "val2" int`,
	}
	if diff := cmp.Diff(want, renderSQL(t, pg, byName.Commands)); diff != "" {
		t.Errorf("without pairing ids (-want +got):\n%s", diff)
	}
}

func TestAlterTableAmbiguousPairingFallsBackToNames(t *testing.T) {
	pg := dialect.MustFor(dialect.Postgres)
	oldTable := table("t1", withID(col("a", "int"), "dup"), withID(col("b", "int"), "dup"))
	newTable := table("t1", withID(col("a", "int"), "dup"), withID(col("b", "int"), "dup"))
	if got := alterTableSQL(t, oldTable, newTable, Options{}, pg); len(got) != 0 {
		t.Errorf("AlterTable() = %v; want no statements", got)
	}
}

func TestAlterTableRecreatesOnSQLite(t *testing.T) {
	tests := []struct {
		name          string
		serverVersion string
		oldTable      model.TableInfo
		newTable      model.TableInfo
		wantMap       map[string]string
	}{
		{
			name:     "column type change",
			oldTable: model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("a", "int")}},
			newTable: model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("a", "text")}},
			wantMap:  map[string]string{"id": "id", "a": "a"},
		},
		{
			name:          "rename without rename column support",
			serverVersion: "3.20.0",
			oldTable:      model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{withID(col("id", "int"), "c1"), withID(col("a", "int"), "c2")}},
			newTable:      model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{withID(col("id", "int"), "c1"), withID(col("b", "int"), "c2")}},
			wantMap:       map[string]string{"id": "id", "b": "a"},
		},
		{
			name:          "drop column before 3.35",
			serverVersion: "3.31.1",
			oldTable:      model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("a", "int")}},
			newTable:      model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int")}},
			wantMap:       map[string]string{"id": "id"},
		},
		{
			name:     "foreign key added",
			oldTable: model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("t2_id", "int")}},
			newTable: model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("t2_id", "int")}, ForeignKeys: []model.ForeignKeyInfo{
				{RefTableName: "t2", Columns: []model.ColumnReference{{ColumnName: "t2_id", RefColumnName: "id"}}},
			}},
			wantMap: map[string]string{"id": "id", "t2_id": "t2_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := dialect.For(dialect.SQLite, tt.serverVersion)
			if err != nil {
				t.Fatal(err)
			}
			oldDb := model.DatabaseInfo{Tables: []model.TableInfo{tt.oldTable}}
			newDb := model.DatabaseInfo{Tables: []model.TableInfo{tt.newTable}}
			cmds := AlterTable(tt.oldTable, tt.newTable, Options{}, oldDb, newDb, caps)
			if len(cmds) != 1 {
				t.Fatalf("AlterTable() returned %d commands; want one RecreateTable", len(cmds))
			}
			recreate, ok := cmds[0].(*command.RecreateTable)
			if !ok {
				t.Fatalf("AlterTable() = %T; want *command.RecreateTable", cmds[0])
			}
			if diff := cmp.Diff(tt.wantMap, recreate.ColumnMap); diff != "" {
				t.Errorf("ColumnMap mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.newTable.Columns, recreate.New.Columns); diff != "" {
				t.Errorf("recreated columns mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlterTableSQLiteSupportedOperationsStayInPlace(t *testing.T) {
	sqlite := dialect.MustFor(dialect.SQLite)
	oldTable := model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("a", "int")}}
	newTable := model.TableInfo{PureName: "t1", Columns: []model.ColumnInfo{col("id", "int"), col("b", "int")}, Indexes: []model.IndexInfo{
		{ConstraintName: "ix_b", Columns: []model.IndexColumn{{ColumnName: "b"}}},
	}}
	want := []string{
		`ALTER TABLE "t1" DROP COLUMN "a"`,
		`ALTER TABLE "t1" ADD COLUMN "b" int`,
		`CREATE INDEX "ix_b" ON "t1" ("b")`,
	}
	if diff := cmp.Diff(want, alterTableSQL(t, oldTable, newTable, Options{}, sqlite)); diff != "" {
		t.Errorf("AlterTable() mismatch (-want +got):\n%s", diff)
	}
}

func TestAlterTableScript(t *testing.T) {
	r, err := render.New(dialect.MustFor(dialect.Postgres))
	if err != nil {
		t.Fatal(err)
	}
	oldTable := table("t1", col("a", "int"))
	newTable := table("t2", col("a", "int"), col("b", "int"))
	res, err := AlterTableScript(oldTable, newTable, Options{},
		model.DatabaseInfo{Tables: []model.TableInfo{oldTable}}, model.DatabaseInfo{Tables: []model.TableInfo{newTable}}, r)
	if err != nil {
		t.Fatalf("AlterTableScript() error = %v", err)
	}
	want := "ALTER TABLE \"public\".\"t1\" RENAME TO \"t2\";\n\nALTER TABLE \"public\".\"t2\" ADD COLUMN \"b\" int;\n"
	if res.SQL != want {
		t.Errorf("AlterTableScript() SQL = %q; want %q", res.SQL, want)
	}
	if res.IsEmpty {
		t.Error("AlterTableScript() IsEmpty = true; want false")
	}
}
