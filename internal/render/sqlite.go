package render

import (
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

// sqliteRenderer renders SQLite. Constraint and column alterations are not expressible; the diff
// replaces them with RecreateTable, and rendering them directly fails.
type sqliteRenderer struct {
	dumper
}

func newSQLite(caps dialect.Capabilities) *sqliteRenderer {
	r := &sqliteRenderer{}
	r.dumper = dumper{caps: caps, hooks: r, visitor: r}
	return r
}

func (r *sqliteRenderer) quote(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (r *sqliteRenderer) literal(v any) string {
	return literalValue(v, numericBool, standardString)
}

func (r *sqliteRenderer) columnDefinition(col model.ColumnInfo) string {
	return strings.Join(r.columnDefinitionParts(col, col.DataType, true), " ")
}

// inlinePrimaryKey declares a single column autoincrement key as INTEGER PRIMARY KEY
// AUTOINCREMENT, the only form sqlite accepts.
func (r *sqliteRenderer) inlinePrimaryKey(table model.TableInfo) (string, string, bool) {
	pk := table.PrimaryKey
	if pk == nil || len(pk.Columns) != 1 {
		return "", "", false
	}
	col, ok := table.Column(pk.Columns[0].ColumnName)
	if !ok || !col.AutoIncrement {
		return "", "", false
	}
	parts := []string{r.quote(col.ColumnName), "INTEGER"}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
	return col.ColumnName, strings.Join(parts, " "), true
}

func (r *sqliteRenderer) VisitCreateSchema(c *command.CreateSchema) error {
	return unsupported(r.caps.Engine, "schemas")
}

func (r *sqliteRenderer) VisitDropSchema(c *command.DropSchema) error {
	return unsupported(r.caps.Engine, "schemas")
}

func (r *sqliteRenderer) VisitSetColumnDefault(c *command.SetColumnDefault) error {
	return unsupported(r.caps.Engine, "changing column defaults")
}

func (r *sqliteRenderer) VisitDropColumnDefault(c *command.DropColumnDefault) error {
	return unsupported(r.caps.Engine, "changing column defaults")
}

func (r *sqliteRenderer) VisitAddPrimaryKey(c *command.AddPrimaryKey) error {
	return unsupported(r.caps.Engine, "adding a primary key")
}

func (r *sqliteRenderer) VisitDropPrimaryKey(c *command.DropPrimaryKey) error {
	return unsupported(r.caps.Engine, "dropping a primary key")
}

func (r *sqliteRenderer) VisitAddForeignKey(c *command.AddForeignKey) error {
	return unsupported(r.caps.Engine, "adding a foreign key")
}

func (r *sqliteRenderer) VisitDropForeignKey(c *command.DropForeignKey) error {
	return unsupported(r.caps.Engine, "dropping a foreign key")
}

func (r *sqliteRenderer) VisitAddUnique(c *command.AddUnique) error {
	return unsupported(r.caps.Engine, "adding a unique constraint")
}

func (r *sqliteRenderer) VisitDropUnique(c *command.DropUnique) error {
	return unsupported(r.caps.Engine, "dropping a unique constraint")
}

func (r *sqliteRenderer) VisitRenameSQLObject(c *command.RenameSQLObject) error {
	return unsupported(r.caps.Engine, "renaming "+string(c.Object.ObjectType))
}
