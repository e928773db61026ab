package deploy

import (
	"testing"

	"github.com/dbgate/dbdeploy/model"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestClassifyFragment(t *testing.T) {
	tests := []struct {
		name string
		kind FragmentKind
		ok   bool
	}{
		{"users.table.yaml", FragmentTable, true},
		{"users.table.yml", FragmentTable, true},
		{"Active.VIEW.sql", FragmentView, true},
		{"stats.matview.sql", FragmentMatView, true},
		{"cleanup.proc.sql", FragmentProcedure, true},
		{"calc.func.sql", FragmentFunction, true},
		{"ext.predeploy.sql", FragmentPredeploy, true},
		{"triggers.install.sql", FragmentInstall, true},
		{"triggers.uninstall.sql", FragmentUninstall, true},
		{"seed.once.sql", FragmentOnce, true},
		{"notes.sql", "", false},
		{"README.md", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ClassifyFragment(tt.name)
			if kind != tt.kind || ok != tt.ok {
				t.Errorf("ClassifyFragment(%q) = %q, %v, want %q, %v", tt.name, kind, ok, tt.kind, tt.ok)
			}
		})
	}
}

func TestFragmentObjectName(t *testing.T) {
	tests := []struct {
		file    string
		content string
		want    string
	}{
		{"v1.view.sql", "SELECT 1;", "v1"},
		{"V1.VIEW.SQL", "SELECT 1;", "V1"},
		{"Active.View.Sql", "SELECT 1;", "Active"},
		{"trg.UNINSTALL.sql", "SELECT 1;", "trg"},
		{"users.TABLE.yml", "columns:\n  - name: id\n    type: int\n", "users"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			f, err := NewFragment(tt.file, tt.content)
			require.NoError(t, err)
			if got := f.ObjectName(); got != tt.want {
				t.Errorf("ObjectName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildModelPairsUninstallInAnyCase(t *testing.T) {
	m := fragments(t,
		"V1.VIEW.SQL", "CREATE VIEW V1 AS SELECT 1;",
		"trg.install.sql", "SELECT 1;",
		"trg.UNINSTALL.SQL", "SELECT 2;",
	)
	db, scripts, err := buildModel(m)
	require.NoError(t, err)

	views := db.SQLObjects(model.ObjectTypeView)
	require.Len(t, views, 1)
	require.Equal(t, "V1", views[0].PureName)

	require.Len(t, scripts, 1)
	require.NotNil(t, scripts[0].uninstall)
	require.Equal(t, "trg.UNINSTALL.SQL", scripts[0].uninstall.Name)
}

func TestNewFragmentTable(t *testing.T) {
	f, err := NewFragment("orders.table.yaml", `
schema: sales
comment: customer orders
columns:
  - name: id
    type: int
    autoIncrement: true
  - name: customer_id
    type: int
    notNull: true
    references: customers
    onDelete: cascade
  - name: status
    type: varchar(20)
    default: "'new'"
primaryKey: [id]
indexes:
  - columns: [customer_id, status desc]
uniques:
  - name: UQ_orders_status
    columns: [status]
data:
  - {id: 1, status: new}
insertKey: [id]
insertOnly: [status]
`)
	require.NoError(t, err)
	require.Equal(t, FragmentTable, f.Kind)
	require.Equal(t, "orders", f.ObjectName())

	want := model.TableInfo{
		SchemaName:    "sales",
		PureName:      "orders",
		ObjectComment: "customer orders",
		Columns: []model.ColumnInfo{
			{ColumnName: "id", DataType: "int", NotNull: true, AutoIncrement: true},
			{ColumnName: "customer_id", DataType: "int", NotNull: true},
			{ColumnName: "status", DataType: "varchar(20)", DefaultValue: model.StringPtr("'new'")},
		},
		PrimaryKey: &model.PrimaryKeyInfo{
			ConstraintName: "PK_orders",
			Columns:        []model.IndexColumn{{ColumnName: "id"}},
		},
		ForeignKeys: []model.ForeignKeyInfo{{
			ConstraintName: "FK_orders_customer_id",
			RefTableName:   "customers",
			Columns:        []model.ColumnReference{{ColumnName: "customer_id"}},
			DeleteAction:   "CASCADE",
		}},
		Indexes: []model.IndexInfo{{
			ConstraintName: "IX_orders_customer_id_status",
			Columns: []model.IndexColumn{
				{ColumnName: "customer_id"},
				{ColumnName: "status", IsDescending: true},
			},
		}},
		Uniques: []model.UniqueInfo{{
			ConstraintName: "UQ_orders_status",
			Columns:        []model.IndexColumn{{ColumnName: "status"}},
		}},
		PreloadedRows:           []map[string]any{{"id": 1, "status": "new"}},
		PreloadedRowsKey:        []string{"id"},
		PreloadedRowsInsertOnly: []string{"status"},
	}
	if diff := cmp.Diff(want, *f.Table); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestNewFragmentTableErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no columns", "name: t\n"},
		{"column without type", "columns:\n  - name: id\n"},
		{"unknown primary key column", "columns:\n  - name: id\n    type: int\nprimaryKey: [other]\n"},
		{"invalid yaml", "columns: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFragment("t.table.yaml", tt.content)
			require.Error(t, err)
		})
	}
}

func TestBuildModelResolvesReferences(t *testing.T) {
	m := fragments(t,
		"customers.table.yaml", "columns:\n  - name: id\n    type: int\nprimaryKey: [id]\n",
		"orders.table.yaml", "columns:\n  - name: customer\n    type: int\n    references: customers\n",
		"active.view.sql", "CREATE VIEW active AS SELECT * FROM customers;\n",
		"trg.install.sql", "SELECT 1;",
		"trg.uninstall.sql", "SELECT 2;",
	)

	db, scripts, err := buildModel(m)
	require.NoError(t, err)

	orders, ok := db.Table(model.NameInfo{PureName: "orders"})
	require.True(t, ok)
	require.Equal(t, "id", orders.ForeignKeys[0].Columns[0].RefColumnName)

	views := db.SQLObjects(model.ObjectTypeView)
	require.Len(t, views, 1)
	require.Equal(t, "CREATE VIEW active AS SELECT * FROM customers;", views[0].CreateSQL)

	require.Len(t, scripts, 1)
	require.Equal(t, "trg.install.sql", scripts[0].fragment.Name)
	require.NotNil(t, scripts[0].uninstall)
	require.Equal(t, "trg.uninstall.sql", scripts[0].uninstall.Name)
}

func TestBuildModelUnknownReference(t *testing.T) {
	m := fragments(t, "orders.table.yaml", "columns:\n  - name: customer\n    type: int\n    references: customers\n")
	_, _, err := buildModel(m)
	require.ErrorContains(t, err, "unknown table customers")
}

func TestLoadFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"model/b.table.yaml":        "columns:\n  - name: id\n    type: int\n",
		"model/a.view.sql":          "CREATE VIEW a AS\n\\i shared/select.sql\n",
		"model/shared/select.sql":   "SELECT id FROM b;\n",
		"model/seed.once.sql":       "INSERT INTO b VALUES (1);",
		"model/notes.txt":           "not part of the model",
		"model/shared/c.table.yaml": "columns:\n  - name: id\n    type: int\n",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	got, err := LoadFolder(fs, "model")
	require.NoError(t, err)

	var names []string
	for _, f := range got {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"a.view.sql", "b.table.yaml", "seed.once.sql"}, names)
	require.Equal(t, "CREATE VIEW a AS\nSELECT id FROM b;\n", got[0].Text)
	require.Equal(t, "b", got[1].Table.PureName)
}

func TestLoadFolderMissing(t *testing.T) {
	_, err := LoadFolder(afero.NewMemMapFs(), "nowhere")
	require.Error(t, err)
}
