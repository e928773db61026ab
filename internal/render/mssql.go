package render

import (
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

// sqlServerRenderer renders Microsoft SQL Server. Defaults are anonymous constraints there, so
// changing or dropping one goes through dynamic SQL over sys.default_constraints.
type sqlServerRenderer struct {
	dumper
}

func newSQLServer(caps dialect.Capabilities) *sqlServerRenderer {
	r := &sqlServerRenderer{}
	r.dumper = dumper{caps: caps, hooks: r, visitor: r}
	return r
}

func (r *sqlServerRenderer) quote(name string) string {
	return quoteWith(name, "[", "]")
}

func (r *sqlServerRenderer) literal(v any) string {
	return literalValue(v, numericBool, func(s string) string {
		return "N" + standardString(s)
	})
}

func (r *sqlServerRenderer) columnDefinition(col model.ColumnInfo) string {
	parts := []string{r.quote(col.ColumnName), col.DataType}
	if col.AutoIncrement {
		parts = append(parts, "IDENTITY(1,1)")
	} else if col.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+*col.DefaultValue)
	}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	} else {
		parts = append(parts, "NULL")
	}
	return strings.Join(parts, " ")
}

func (r *sqlServerRenderer) schemaName(name model.NameInfo) string {
	if name.SchemaName != "" {
		return name.SchemaName
	}
	return r.caps.DefaultSchema
}

// dropDefaultConstraint removes the default constraint of a column, if any.
func (r *sqlServerRenderer) dropDefaultConstraint(table model.NameInfo, column string) error {
	full := r.FullName(table)
	return r.emit(`DECLARE @sql NVARCHAR(MAX);
SELECT @sql = %s + QUOTENAME(dc.name)
FROM sys.default_constraints dc
JOIN sys.columns c ON c.object_id = dc.parent_object_id AND c.column_id = dc.parent_column_id
WHERE dc.parent_object_id = OBJECT_ID(%s) AND c.name = %s;
IF @sql IS NOT NULL EXEC sp_executesql @sql`,
		r.literal("ALTER TABLE "+full+" DROP CONSTRAINT "), r.literal(full), r.literal(column))
}

func (r *sqlServerRenderer) VisitAddColumn(c *command.AddColumn) error {
	r.emit("ALTER TABLE %s ADD %s", r.FullName(c.Table), r.columnDefinition(c.Column))
	if c.Column.ColumnComment != "" {
		return r.VisitSetColumnComment(&command.SetColumnComment{Table: c.Table, Column: c.Column, Comment: c.Column.ColumnComment})
	}
	return nil
}

func (r *sqlServerRenderer) VisitDropColumn(c *command.DropColumn) error {
	r.dropDefaultConstraint(c.Table, c.Column.ColumnName)
	return r.emit("ALTER TABLE %s DROP COLUMN %s", r.FullName(c.Table), r.quote(c.Column.ColumnName))
}

func (r *sqlServerRenderer) VisitRenameTable(c *command.RenameTable) error {
	return r.emit("EXEC sp_rename %s, %s", r.literal(r.FullName(c.Table)), r.literal(c.NewName))
}

func (r *sqlServerRenderer) VisitRenameColumn(c *command.RenameColumn) error {
	return r.emit("EXEC sp_rename %s, %s, 'COLUMN'",
		r.literal(r.FullName(c.Table)+"."+r.quote(c.Column.ColumnName)), r.literal(c.NewName))
}

func (r *sqlServerRenderer) VisitAlterColumn(c *command.AlterColumn) error {
	nullability := "NULL"
	if c.New.NotNull {
		nullability = "NOT NULL"
	}
	return r.emit("ALTER TABLE %s ALTER COLUMN %s %s %s", r.FullName(c.Table), r.quote(c.New.ColumnName), c.New.DataType, nullability)
}

func (r *sqlServerRenderer) VisitSetColumnDefault(c *command.SetColumnDefault) error {
	r.dropDefaultConstraint(c.Table, c.Column.ColumnName)
	return r.emit("ALTER TABLE %s ADD CONSTRAINT %s DEFAULT %s FOR %s",
		r.FullName(c.Table), r.quote(fmt.Sprintf("DF_%s_%s", c.Table.PureName, c.Column.ColumnName)),
		c.DefaultValue, r.quote(c.Column.ColumnName))
}

func (r *sqlServerRenderer) VisitDropColumnDefault(c *command.DropColumnDefault) error {
	return r.dropDefaultConstraint(c.Table, c.Column.ColumnName)
}

func (r *sqlServerRenderer) VisitDropPrimaryKey(c *command.DropPrimaryKey) error {
	if c.PrimaryKey.ConstraintName != "" {
		return r.dumper.VisitDropPrimaryKey(c)
	}
	full := r.FullName(c.Table)
	return r.emit(`DECLARE @sql NVARCHAR(MAX);
SELECT @sql = %s + QUOTENAME(name) FROM sys.key_constraints WHERE parent_object_id = OBJECT_ID(%s) AND type = 'PK';
IF @sql IS NOT NULL EXEC sp_executesql @sql`,
		r.literal("ALTER TABLE "+full+" DROP CONSTRAINT "), r.literal(full))
}

func (r *sqlServerRenderer) VisitDropIndex(c *command.DropIndex) error {
	return r.emit("DROP INDEX %s ON %s", r.quote(c.Index.ConstraintName), r.FullName(c.Table))
}

// extendedProperty renders MS_Description maintenance for a table (column == "") or column.
func (r *sqlServerRenderer) extendedProperty(table model.NameInfo, column, comment string) {
	full := r.FullName(table)
	level := fmt.Sprintf("@level0type = N'SCHEMA', @level0name = %s, @level1type = N'TABLE', @level1name = %s",
		r.literal(r.schemaName(table)), r.literal(table.PureName))
	minor := "0"
	if column != "" {
		level += ", @level2type = N'COLUMN', @level2name = " + r.literal(column)
		minor = fmt.Sprintf("COLUMNPROPERTY(OBJECT_ID(%s), %s, 'ColumnId')", r.literal(full), r.literal(column))
	}
	r.emit(`IF EXISTS (SELECT 1 FROM sys.extended_properties WHERE major_id = OBJECT_ID(%s) AND minor_id = %s AND name = N'MS_Description')
    EXEC sp_dropextendedproperty @name = N'MS_Description', %s`, r.literal(full), minor, level)
	if comment != "" {
		r.emit("EXEC sp_addextendedproperty @name = N'MS_Description', @value = %s, %s", r.literal(comment), level)
	}
}

func (r *sqlServerRenderer) VisitSetTableComment(c *command.SetTableComment) error {
	r.extendedProperty(c.Table, "", c.Comment)
	return nil
}

func (r *sqlServerRenderer) VisitSetColumnComment(c *command.SetColumnComment) error {
	r.extendedProperty(c.Table, c.Column.ColumnName, c.Comment)
	return nil
}

func (r *sqlServerRenderer) VisitRenameSQLObject(c *command.RenameSQLObject) error {
	return r.emit("EXEC sp_rename %s, %s", r.literal(r.FullName(c.Object.Name())), r.literal(c.NewName))
}
