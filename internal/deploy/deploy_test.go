package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/dbgate/dbdeploy/internal/journal"
	"github.com/dbgate/dbdeploy/model"
	"github.com/dbgate/dbdeploy/testutil"
	"github.com/stretchr/testify/require"
)

const t1Table = `
name: t1
columns:
  - name: id
    type: int
  - name: val
    type: int
primaryKey: [id]
`

const t1TableWithData = t1Table + `
data:
  - {id: 1, val: 1}
  - {id: 2, val: 2}
`

const t1TableWithChangedData = t1Table + `
data:
  - {id: 2, val: 5}
`

const eventsTable = `
name: events
columns:
  - name: name
    type: varchar(50)
`

func fragments(t *testing.T, files ...string) []Fragment {
	t.Helper()
	require.Zero(t, len(files)%2, "files are name/content pairs")
	var res []Fragment
	for i := 0; i < len(files); i += 2 {
		f, err := NewFragment(files[i], files[i+1])
		require.NoError(t, err)
		res = append(res, f)
	}
	return res
}

func deploy(t *testing.T, conn *driver.Conn, m []Fragment, opts Options) {
	t.Helper()
	_, err := DeployDB(context.Background(), Live(conn), m, opts)
	require.NoError(t, err)
}

func queryColumn(t *testing.T, conn *driver.Conn, query string) []any {
	t.Helper()
	res, err := conn.Query(context.Background(), query)
	require.NoError(t, err)
	var values []any
	for _, row := range res.Rows {
		values = append(values, row[res.Columns[0]])
	}
	return values
}

func tableNames(t *testing.T, conn *driver.Conn) []string {
	t.Helper()
	db, err := conn.AnalyseFull(context.Background())
	require.NoError(t, err)
	var names []string
	for _, table := range db.Tables {
		names = append(names, table.PureName)
	}
	return names
}

func TestDeployConverges(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t,
		"t1.table.yaml", t1Table,
		"v1.view.sql", "CREATE VIEW v1 AS SELECT id FROM t1;\n",
	)

	first, err := GenerateDeploySQL(ctx, Live(conn), m, Options{})
	require.NoError(t, err)
	require.False(t, first.IsEmpty())

	deploy(t, conn, m, Options{})

	second, err := GenerateDeploySQL(ctx, Live(conn), m, Options{})
	require.NoError(t, err)
	require.True(t, second.IsEmpty(), "second deploy should be empty, got:\n%s", second.ToSQL())
}

func TestDeploySoftDeleteAndUndelete(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t, "t1.table.yaml", t1TableWithData)
	opts := Options{MarkDeleted: true}

	deploy(t, conn, m, opts)
	deploy(t, conn, nil, opts)
	require.Equal(t, []string{"_deleted_t1"}, tableNames(t, conn))
	require.Len(t, queryColumn(t, conn, `SELECT id FROM "_deleted_t1"`), 2)

	deploy(t, conn, m, opts)
	require.Equal(t, []string{"t1"}, tableNames(t, conn))
	require.Equal(t, []any{int64(1), int64(2)}, queryColumn(t, conn, `SELECT id FROM t1 ORDER BY id`))
}

func TestDeployKeepsRemovedTablesWithoutDropPermission(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	deploy(t, conn, fragments(t, "t1.table.yaml", t1Table), Options{})

	deploy(t, conn, nil, Options{})
	require.Equal(t, []string{"t1"}, tableNames(t, conn))

	deploy(t, conn, nil, Options{AllowDropStatements: true})
	require.Empty(t, tableNames(t, conn))
}

func TestDeployJournalRunCounts(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t,
		"events.table.yaml", eventsTable,
		"t1.install.sql", "INSERT INTO events (name) VALUES ('install');",
		"t1.uninstall.sql", "INSERT INTO events (name) VALUES ('uninstall');",
		"seed.once.sql", "INSERT INTO events (name) VALUES ('once');",
	)

	for i := 0; i < 3; i++ {
		deploy(t, conn, m, Options{})
	}

	runCounts, err := journal.New(conn, journal.Config{}).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"t1.install.sql": 3, "seed.once.sql": 1}, runCounts)
	require.Equal(t,
		[]any{"install", "once", "uninstall", "install", "uninstall", "install"},
		queryColumn(t, conn, "SELECT name FROM events ORDER BY rowid"))
}

func TestDeployInstallTwice(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t,
		"events.table.yaml", eventsTable,
		"t1.install.sql", "INSERT INTO events (name) VALUES ('install');",
		"t1.uninstall.sql", "INSERT INTO events (name) VALUES ('uninstall');",
	)

	deploy(t, conn, m, Options{})
	deploy(t, conn, m, Options{})

	runCounts, err := journal.New(conn, journal.Config{}).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, runCounts["t1.install.sql"])
	require.Equal(t, []any{"install", "uninstall", "install"}, queryColumn(t, conn, "SELECT name FROM events ORDER BY rowid"))
}

func TestDeployPredeployRunsEveryTime(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t,
		"events.table.yaml", eventsTable,
		"a.predeploy.sql", "CREATE TABLE IF NOT EXISTS pre (n int); INSERT INTO pre VALUES (1);",
	)

	deploy(t, conn, m, Options{})
	deploy(t, conn, m, Options{})
	require.Len(t, queryColumn(t, conn, "SELECT n FROM pre"), 2)
}

func TestDeployCustomJournalTable(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	config := journal.Config{TableName: "deploy_log"}
	m := fragments(t, "seed.once.sql", "CREATE TABLE seeded (n int);")

	deploy(t, conn, m, Options{Journal: config})

	require.ElementsMatch(t, []string{"deploy_log", "seeded"}, tableNames(t, conn))
	runCounts, err := journal.New(conn, config).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"seed.once.sql": 1}, runCounts)

	// the journal table is not part of the model and is never dropped
	p, err := GenerateDeploySQL(ctx, Live(conn), m, Options{Journal: config, AllowDropStatements: true})
	require.NoError(t, err)
	require.NotContains(t, p.ToSQL(), "deploy_log")
}

func TestDeployForeignKeyDropAndAdd(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	parent := `
name: t0
columns:
  - name: id
    type: int
primaryKey: [id]
`
	child := func(withReference bool) string {
		ref := ""
		if withReference {
			ref = "\n    references: t0"
		}
		return `
name: t1
columns:
  - name: id
    type: int
  - name: parent_id
    type: int` + ref + `
primaryKey: [id]
`
	}
	foreignKeys := func() []model.ForeignKeyInfo {
		db, err := conn.AnalyseFull(ctx)
		require.NoError(t, err)
		t1, ok := db.Table(model.NameInfo{PureName: "t1"})
		require.True(t, ok)
		return t1.ForeignKeys
	}

	deploy(t, conn, fragments(t, "t0.table.yaml", parent, "t1.table.yaml", child(true)), Options{})
	require.Len(t, foreignKeys(), 1)
	require.Equal(t, "t0", foreignKeys()[0].RefTableName)

	deploy(t, conn, fragments(t, "t0.table.yaml", parent, "t1.table.yaml", child(false)), Options{})
	require.Empty(t, foreignKeys())

	deploy(t, conn, fragments(t, "t0.table.yaml", parent, "t1.table.yaml", child(true)), Options{})
	require.Len(t, foreignKeys(), 1)
}

func TestDeployDataUpsert(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)

	deploy(t, conn, fragments(t, "t1.table.yaml", t1TableWithData), Options{})
	deploy(t, conn, fragments(t, "t1.table.yaml", t1TableWithChangedData), Options{})

	res, err := conn.Query(ctx, "SELECT id, val FROM t1 ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, []map[string]any{
		{"id": int64(1), "val": int64(1)},
		{"id": int64(2), "val": int64(5)},
	}, res.Rows)

	p, err := GenerateDeploySQL(ctx, Live(conn), fragments(t, "t1.table.yaml", t1TableWithChangedData), Options{})
	require.NoError(t, err)
	require.True(t, p.IsEmpty(), "unchanged rows should not be written again:\n%s", p.ToSQL())
}

func TestDeployDataInsertOnly(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	table := func(val int) string {
		return t1Table + fmt.Sprintf("insertOnly: [val]\ndata:\n  - {id: 1, val: %d}\n", val)
	}

	deploy(t, conn, fragments(t, "t1.table.yaml", table(1)), Options{})
	p, err := GenerateDeploySQL(ctx, Live(conn), fragments(t, "t1.table.yaml", table(7)), Options{})
	require.NoError(t, err)
	require.True(t, p.IsEmpty(), "insert-only columns are not updated:\n%s", p.ToSQL())
}

func TestDeployDataWithoutKey(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t, "t2.table.yaml", `
name: t2
columns:
  - name: val
    type: int
data:
  - {val: 1}
`)
	_, err := GenerateDeploySQL(context.Background(), Live(conn), m, Options{})
	require.ErrorIs(t, err, ErrNoKey)
}

func TestDeployExecError(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t, "broken.once.sql", "INSERT INTO missing_table VALUES (1);")

	_, err := DeployDB(context.Background(), Live(conn), m, Options{})
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, execErr.Statement, "missing_table")
}

func TestGenerateDeploySQLPrepared(t *testing.T) {
	ctx := context.Background()
	conn, config := testutil.OpenSQLite(t)
	deploy(t, conn, fragments(t, "t1.table.yaml", t1Table), Options{})

	m := fragments(t, "t1.table.yaml", t1Table, "t2.table.yaml", "name: t2\ncolumns:\n  - name: id\n    type: int\n")
	p, err := GenerateDeploySQL(ctx, Prepared(config), m, Options{})
	require.NoError(t, err)
	require.Contains(t, p.ToSQL(), `CREATE TABLE "t2"`)
	require.NotContains(t, p.ToSQL(), `CREATE TABLE "t1"`)

	// with a known structure and no data or scripts the target is never contacted
	unreachable := driver.Config{Engine: dialect.SQLite}
	p, err = GenerateDeploySQL(ctx, Prepared(unreachable), m, Options{CurrentStructure: &model.DatabaseInfo{}})
	require.NoError(t, err)
	require.Contains(t, p.ToSQL(), `CREATE TABLE "t1"`)
}

func TestExecuteChecksFingerprint(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t, "t1.table.yaml", t1Table)

	p, err := GenerateDeploySQL(ctx, Live(conn), m, Options{})
	require.NoError(t, err)

	require.NoError(t, conn.Script(ctx, "CREATE TABLE intruder (id int)"))
	err = Execute(ctx, conn, p, journal.Config{})
	require.True(t, errors.Is(err, fingerprint.ErrFingerprintMismatch), "Execute() error = %v", err)

	require.NoError(t, conn.Script(ctx, "DROP TABLE intruder"))
	require.NoError(t, Execute(ctx, conn, p, journal.Config{}))
	require.Equal(t, []string{"t1"}, tableNames(t, conn))
}

func TestDeployPreparedTargetOnlyPlans(t *testing.T) {
	ctx := context.Background()
	conn, config := testutil.OpenSQLite(t)
	m := fragments(t, "t1.table.yaml", t1Table)

	p, err := DeployDB(ctx, Prepared(config), m, Options{})
	require.NoError(t, err)
	require.Contains(t, p.ToSQL(), `CREATE TABLE "t1"`)
	require.Empty(t, tableNames(t, conn))

	require.NoError(t, Execute(ctx, conn, p, journal.Config{}))
	require.Equal(t, []string{"t1"}, tableNames(t, conn))
}

func TestDeployUndeleteWithColumnChange(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	opts := Options{MarkDeleted: true}
	changed := strings.Replace(t1TableWithData, "  - name: val\n    type: int\n", "  - name: val\n    type: int\n    default: \"7\"\n", 1)

	deploy(t, conn, fragments(t, "t1.table.yaml", t1TableWithData), opts)
	deploy(t, conn, nil, opts)
	require.Equal(t, []string{"_deleted_t1"}, tableNames(t, conn))

	deploy(t, conn, fragments(t, "t1.table.yaml", changed), opts)
	require.Equal(t, []string{"t1"}, tableNames(t, conn))
	require.Equal(t, []any{int64(1), int64(2)}, queryColumn(t, conn, `SELECT id FROM t1 ORDER BY id`))

	second, err := GenerateDeploySQL(context.Background(), Live(conn), fragments(t, "t1.table.yaml", changed), opts)
	require.NoError(t, err)
	require.True(t, second.IsEmpty(), "deploy after undelete should be empty, got:\n%s", second.ToSQL())
}

func TestDeployRecreatesTableUnderView(t *testing.T) {
	conn, _ := testutil.OpenSQLite(t)
	view := "CREATE VIEW v1 AS SELECT id, val FROM t1;\n"
	changed := strings.Replace(t1TableWithData, "  - name: val\n    type: int\n", "  - name: val\n    type: int\n    default: \"7\"\n", 1)

	deploy(t, conn, fragments(t, "t1.table.yaml", t1TableWithData, "v1.view.sql", view), Options{})
	deploy(t, conn, fragments(t, "t1.table.yaml", changed, "v1.view.sql", view), Options{})

	require.ElementsMatch(t, []string{"t1", journal.Config{}.DefinitionsName().PureName}, tableNames(t, conn))
	require.Equal(t, []any{int64(1), int64(2)}, queryColumn(t, conn, `SELECT id FROM v1 ORDER BY id`))
}

// catalogForm stands in for an engine that reports view definitions in its own formatting.
func catalogForm(t *testing.T, conn *driver.Conn) *model.DatabaseInfo {
	t.Helper()
	db, err := conn.AnalyseFull(context.Background())
	require.NoError(t, err)
	views := db.SQLObjects(model.ObjectTypeView)
	for i := range views {
		views[i].CreateSQL = fmt.Sprintf("CREATE VIEW \"%s\" AS\nselect \"id\" AS \"id\" from \"main\".\"t1\"", views[i].PureName)
	}
	res := db.WithSQLObjects(views)
	return &res
}

func TestDeployConvergesOnCatalogFormattedViews(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	m := fragments(t,
		"t1.table.yaml", t1Table,
		"v1.view.sql", "CREATE VIEW v1 AS SELECT id FROM t1;\n",
	)
	deploy(t, conn, m, Options{})

	p, err := GenerateDeploySQL(ctx, Live(conn), m, Options{CurrentStructure: catalogForm(t, conn)})
	require.NoError(t, err)
	require.True(t, p.IsEmpty(), "unchanged view should not be recreated, got:\n%s", p.ToSQL())

	changed := fragments(t,
		"t1.table.yaml", t1Table,
		"v1.view.sql", "CREATE VIEW v1 AS SELECT id, val FROM t1;\n",
	)
	p, err = GenerateDeploySQL(ctx, Live(conn), changed, Options{CurrentStructure: catalogForm(t, conn)})
	require.NoError(t, err)
	require.Contains(t, p.ToSQL(), "DROP VIEW")
	require.Contains(t, p.ToSQL(), "UPDATE")

	deploy(t, conn, changed, Options{})
	p, err = GenerateDeploySQL(ctx, Live(conn), changed, Options{CurrentStructure: catalogForm(t, conn)})
	require.NoError(t, err)
	require.True(t, p.IsEmpty(), "redeployed view should be tracked, got:\n%s", p.ToSQL())
}

func TestDeployUntrackedViewFollowsCatalog(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.OpenSQLite(t)
	require.NoError(t, conn.Script(ctx, "CREATE TABLE t1 (id int NOT NULL, val int, PRIMARY KEY (id));\nCREATE VIEW v1 AS SELECT id FROM t1;"))
	m := fragments(t,
		"t1.table.yaml", t1Table,
		"v1.view.sql", "CREATE VIEW v1 AS SELECT id FROM t1;\n",
	)

	p, err := GenerateDeploySQL(ctx, Live(conn), m, Options{CurrentStructure: catalogForm(t, conn)})
	require.NoError(t, err)
	require.False(t, p.IsEmpty())
	require.Contains(t, p.ToSQL(), "INSERT INTO")
	require.Contains(t, p.ToSQL(), journal.Config{}.DefinitionsName().PureName)
}
