package render

import (
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

type mysqlRenderer struct {
	dumper
}

func newMySQL(caps dialect.Capabilities) *mysqlRenderer {
	r := &mysqlRenderer{}
	r.dumper = dumper{caps: caps, hooks: r, visitor: r}
	return r
}

func (r *mysqlRenderer) quote(name string) string {
	return quoteWith(name, "`", "`")
}

func (r *mysqlRenderer) literal(v any) string {
	return literalValue(v, numericBool, func(s string) string {
		s = strings.ReplaceAll(s, `\`, `\\`)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	})
}

func (r *mysqlRenderer) columnDefinition(col model.ColumnInfo) string {
	parts := r.columnDefinitionParts(col, col.DataType, !col.AutoIncrement)
	if col.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if col.ColumnComment != "" {
		parts = append(parts, "COMMENT "+r.literal(col.ColumnComment))
	}
	return strings.Join(parts, " ")
}

// VisitCreateTable keeps comments inline, as mysql has no COMMENT ON.
func (r *mysqlRenderer) VisitCreateTable(c *command.CreateTable) error {
	stmt := r.createTableStatement(c.Table.Name(), r.tableBody(c.Table, c.WithForeignKeys))
	if c.Table.ObjectComment != "" {
		stmt += " COMMENT = " + r.literal(c.Table.ObjectComment)
	}
	r.emit("%s", stmt)
	for i := range c.Table.Indexes {
		r.VisitCreateIndex(&command.CreateIndex{Table: c.Table.Name(), Index: c.Table.Indexes[i]})
	}
	return nil
}

func (r *mysqlRenderer) VisitRenameTable(c *command.RenameTable) error {
	return r.emit("RENAME TABLE %s TO %s", r.FullName(c.Table), r.quote(c.NewName))
}

func (r *mysqlRenderer) VisitRenameColumn(c *command.RenameColumn) error {
	renamed := c.Column
	renamed.ColumnName = c.NewName
	return r.emit("ALTER TABLE %s CHANGE COLUMN %s %s", r.FullName(c.Table), r.quote(c.Column.ColumnName), r.columnDefinition(renamed))
}

func (r *mysqlRenderer) VisitAlterColumn(c *command.AlterColumn) error {
	return r.emit("ALTER TABLE %s MODIFY COLUMN %s", r.FullName(c.Table), r.columnDefinition(c.New))
}

func (r *mysqlRenderer) VisitDropPrimaryKey(c *command.DropPrimaryKey) error {
	return r.emit("ALTER TABLE %s DROP PRIMARY KEY", r.FullName(c.Table))
}

func (r *mysqlRenderer) VisitDropForeignKey(c *command.DropForeignKey) error {
	return r.emit("ALTER TABLE %s DROP FOREIGN KEY %s", r.FullName(c.Table), r.quote(c.ForeignKey.ConstraintName))
}

func (r *mysqlRenderer) VisitCreateIndex(c *command.CreateIndex) error {
	return r.emit("%s", r.createIndexStatement(c, false))
}

func (r *mysqlRenderer) VisitDropIndex(c *command.DropIndex) error {
	return r.emit("DROP INDEX %s ON %s", r.quote(c.Index.ConstraintName), r.FullName(c.Table))
}

func (r *mysqlRenderer) VisitDropUnique(c *command.DropUnique) error {
	return r.emit("ALTER TABLE %s DROP INDEX %s", r.FullName(c.Table), r.quote(c.Unique.ConstraintName))
}

func (r *mysqlRenderer) VisitSetTableComment(c *command.SetTableComment) error {
	return r.emit("ALTER TABLE %s COMMENT = %s", r.FullName(c.Table), r.literal(c.Comment))
}

func (r *mysqlRenderer) VisitSetColumnComment(c *command.SetColumnComment) error {
	col := c.Column
	col.ColumnComment = c.Comment
	return r.emit("ALTER TABLE %s MODIFY COLUMN %s", r.FullName(c.Table), r.columnDefinition(col))
}

func (r *mysqlRenderer) VisitRenameSQLObject(c *command.RenameSQLObject) error {
	if c.Object.ObjectType != model.ObjectTypeView {
		return unsupported(r.caps.Engine, "renaming "+string(c.Object.ObjectType))
	}
	return r.emit("RENAME TABLE %s TO %s", r.FullName(c.Object.Name()), r.quote(c.NewName))
}

func (r *mysqlRenderer) VisitAddColumn(c *command.AddColumn) error {
	return r.emit("ALTER TABLE %s ADD COLUMN %s", r.FullName(c.Table), r.columnDefinition(c.Column))
}
