// Package render turns abstract commands into SQL text. There is one Renderer per engine
// family; they share a base dumper and override the statements whose syntax differs.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

// Renderer renders commands for one engine. A Renderer is stateful and must not be shared
// between goroutines.
type Renderer interface {
	// RenderCommand returns the statements of a single command.
	RenderCommand(c command.Command) ([]string, error)
	// Statements returns the statements of all commands, in order.
	Statements(cmds []command.Command) ([]string, error)
	// Render returns the statements as one script.
	Render(cmds []command.Command) (string, error)

	QuoteIdentifier(name string) string
	FullName(name model.NameInfo) string
	Literal(v any) string
	Capabilities() dialect.Capabilities
}

// New returns the renderer of the engine described by caps.
func New(caps dialect.Capabilities) (Renderer, error) {
	switch caps.Engine {
	case dialect.Postgres, dialect.CockroachDB:
		return newPostgres(caps), nil
	case dialect.MySQL:
		return newMySQL(caps), nil
	case dialect.SQLServer:
		return newSQLServer(caps), nil
	case dialect.SQLite:
		return newSQLite(caps), nil
	}
	return nil, fmt.Errorf("%w: %q", dialect.ErrUnsupportedEngine, caps.Engine)
}

// engineHooks are the engine specific pieces the base dumper needs.
type engineHooks interface {
	quote(name string) string
	literal(v any) string
	// columnDefinition renders a column as used in CREATE TABLE and ADD COLUMN.
	columnDefinition(col model.ColumnInfo) string
}

// dumper implements every command with the most common syntax. Engine renderers embed it and
// override what differs.
type dumper struct {
	caps    dialect.Capabilities
	hooks   engineHooks
	visitor command.Visitor
	out     []string
}

func unsupported(engine dialect.Engine, what string) error {
	return fmt.Errorf("%s does not support %s", engine, what)
}

func (d *dumper) emit(format string, args ...any) error {
	d.out = append(d.out, fmt.Sprintf(format, args...))
	return nil
}

func (d *dumper) Capabilities() dialect.Capabilities {
	return d.caps
}

func (d *dumper) RenderCommand(c command.Command) ([]string, error) {
	d.out = nil
	if err := c.Accept(d.visitor); err != nil {
		return nil, err
	}
	res := d.out
	d.out = nil
	return res, nil
}

func (d *dumper) Statements(cmds []command.Command) ([]string, error) {
	var res []string
	for _, c := range cmds {
		stmts, err := d.RenderCommand(c)
		if err != nil {
			return nil, err
		}
		res = append(res, stmts...)
	}
	return res, nil
}

func (d *dumper) Render(cmds []command.Command) (string, error) {
	stmts, err := d.Statements(cmds)
	if err != nil {
		return "", err
	}
	return JoinStatements(stmts), nil
}

// JoinStatements joins statements into a script, one statement per paragraph.
func JoinStatements(stmts []string) string {
	var sb strings.Builder
	for i, stmt := range stmts {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimRight(stmt, "; \n"))
		sb.WriteString(";\n")
	}
	return sb.String()
}

func (d *dumper) QuoteIdentifier(name string) string {
	return d.hooks.quote(name)
}

func (d *dumper) Literal(v any) string {
	return d.hooks.literal(v)
}

func (d *dumper) FullName(name model.NameInfo) string {
	if name.SchemaName != "" && d.caps.SupportsSchemas {
		return d.hooks.quote(name.SchemaName) + "." + d.hooks.quote(name.PureName)
	}
	return d.hooks.quote(name.PureName)
}

func (d *dumper) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = d.hooks.quote(name)
	}
	return strings.Join(quoted, ", ")
}

func (d *dumper) indexColumns(cols []model.IndexColumn) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = d.hooks.quote(col.ColumnName)
		if col.IsDescending {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

func (d *dumper) constraintPrefix(name string) string {
	if name == "" {
		return ""
	}
	return "CONSTRAINT " + d.hooks.quote(name) + " "
}

func (d *dumper) primaryKeyClause(pk model.PrimaryKeyInfo) string {
	return d.constraintPrefix(pk.ConstraintName) + "PRIMARY KEY (" + d.indexColumns(pk.Columns) + ")"
}

func (d *dumper) uniqueClause(uq model.UniqueInfo) string {
	return d.constraintPrefix(uq.ConstraintName) + "UNIQUE (" + d.indexColumns(uq.Columns) + ")"
}

func (d *dumper) foreignKeyClause(fk model.ForeignKeyInfo) string {
	cols := make([]string, len(fk.Columns))
	refCols := make([]string, len(fk.Columns))
	for i, ref := range fk.Columns {
		cols[i] = ref.ColumnName
		refCols[i] = ref.RefColumnName
	}
	clause := fmt.Sprintf("%sFOREIGN KEY (%s) REFERENCES %s (%s)",
		d.constraintPrefix(fk.ConstraintName), d.quoteList(cols), d.FullName(fk.RefName()), d.quoteList(refCols))
	if fk.DeleteAction != "" && !strings.EqualFold(fk.DeleteAction, "NO ACTION") {
		clause += " ON DELETE " + strings.ToUpper(fk.DeleteAction)
	}
	if fk.UpdateAction != "" && !strings.EqualFold(fk.UpdateAction, "NO ACTION") {
		clause += " ON UPDATE " + strings.ToUpper(fk.UpdateAction)
	}
	return clause
}

// inlinePrimaryKeyHook is implemented by engines that declare some primary keys on the
// column itself (sqlite autoincrement).
type inlinePrimaryKeyHook interface {
	inlinePrimaryKey(table model.TableInfo) (column string, definition string, ok bool)
}

// tableBody renders the column and constraint lines of CREATE TABLE.
func (d *dumper) tableBody(table model.TableInfo, withForeignKeys bool) []string {
	var inlineColumn, inlineDefinition string
	var inline bool
	if h, ok := d.hooks.(inlinePrimaryKeyHook); ok {
		inlineColumn, inlineDefinition, inline = h.inlinePrimaryKey(table)
	}

	var lines []string
	for _, col := range table.Columns {
		if inline && col.ColumnName == inlineColumn {
			lines = append(lines, inlineDefinition)
			continue
		}
		lines = append(lines, d.hooks.columnDefinition(col))
	}
	if !inline && table.PrimaryKey != nil && len(table.PrimaryKey.Columns) > 0 {
		lines = append(lines, d.primaryKeyClause(*table.PrimaryKey))
	}
	for _, uq := range table.Uniques {
		lines = append(lines, d.uniqueClause(uq))
	}
	if withForeignKeys {
		for _, fk := range table.ForeignKeys {
			lines = append(lines, d.foreignKeyClause(fk))
		}
	}
	return lines
}

func (d *dumper) createTableStatement(name model.NameInfo, lines []string) string {
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", d.FullName(name), strings.Join(lines, ",\n    "))
}

// createTableExtras renders what follows CREATE TABLE: indexes and comments.
func (d *dumper) createTableExtras(table model.TableInfo) error {
	for i := range table.Indexes {
		if err := d.visitor.VisitCreateIndex(&command.CreateIndex{Table: table.Name(), Index: table.Indexes[i]}); err != nil {
			return err
		}
	}
	if d.caps.TableComments && table.ObjectComment != "" {
		if err := d.visitor.VisitSetTableComment(&command.SetTableComment{Table: table.Name(), Comment: table.ObjectComment}); err != nil {
			return err
		}
	}
	if d.caps.ColumnComments {
		for _, col := range table.Columns {
			if col.ColumnComment == "" {
				continue
			}
			if err := d.visitor.VisitSetColumnComment(&command.SetColumnComment{Table: table.Name(), Column: col, Comment: col.ColumnComment}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *dumper) VisitCreateSchema(c *command.CreateSchema) error {
	return d.emit("CREATE SCHEMA %s", d.hooks.quote(c.SchemaName))
}

func (d *dumper) VisitDropSchema(c *command.DropSchema) error {
	return d.emit("DROP SCHEMA %s", d.hooks.quote(c.SchemaName))
}

func (d *dumper) VisitCreateTable(c *command.CreateTable) error {
	d.emit("%s", d.createTableStatement(c.Table.Name(), d.tableBody(c.Table, c.WithForeignKeys)))
	return d.createTableExtras(c.Table)
}

func (d *dumper) VisitDropTable(c *command.DropTable) error {
	return d.emit("DROP TABLE %s", d.FullName(c.Table.Name()))
}

func (d *dumper) VisitRenameTable(c *command.RenameTable) error {
	return d.emit("ALTER TABLE %s RENAME TO %s", d.FullName(c.Table), d.hooks.quote(c.NewName))
}

// VisitRecreateTable builds the new structure under a temporary name, copies the mapped
// columns, drops the old table and renames the new one into place.
func (d *dumper) VisitRecreateTable(c *command.RecreateTable) error {
	tempName := model.NameInfo{SchemaName: c.New.SchemaName, PureName: "_recreated_" + c.New.PureName}
	d.emit("%s", d.createTableStatement(tempName, d.tableBody(c.New, true)))

	var newCols, oldCols []string
	for _, col := range c.New.Columns {
		if oldName, ok := c.ColumnMap[col.ColumnName]; ok {
			newCols = append(newCols, col.ColumnName)
			oldCols = append(oldCols, oldName)
		}
	}
	if len(newCols) > 0 {
		d.emit("INSERT INTO %s (%s) SELECT %s FROM %s",
			d.FullName(tempName), d.quoteList(newCols), d.quoteList(oldCols), d.FullName(c.Old.Name()))
	}
	d.emit("DROP TABLE %s", d.FullName(c.Old.Name()))
	if err := d.visitor.VisitRenameTable(&command.RenameTable{Table: tempName, NewName: c.New.PureName}); err != nil {
		return err
	}
	return d.createTableExtras(c.New)
}

func (d *dumper) VisitAddColumn(c *command.AddColumn) error {
	d.emit("ALTER TABLE %s ADD COLUMN %s", d.FullName(c.Table), d.hooks.columnDefinition(c.Column))
	if d.caps.ColumnComments && c.Column.ColumnComment != "" {
		return d.visitor.VisitSetColumnComment(&command.SetColumnComment{Table: c.Table, Column: c.Column, Comment: c.Column.ColumnComment})
	}
	return nil
}

func (d *dumper) VisitDropColumn(c *command.DropColumn) error {
	return d.emit("ALTER TABLE %s DROP COLUMN %s", d.FullName(c.Table), d.hooks.quote(c.Column.ColumnName))
}

func (d *dumper) VisitRenameColumn(c *command.RenameColumn) error {
	return d.emit("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.FullName(c.Table), d.hooks.quote(c.Column.ColumnName), d.hooks.quote(c.NewName))
}

func (d *dumper) VisitAlterColumn(c *command.AlterColumn) error {
	return fmt.Errorf("%s cannot alter column %s in place", d.caps.Engine, c.New.ColumnName)
}

func (d *dumper) VisitSetColumnDefault(c *command.SetColumnDefault) error {
	return d.emit("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s",
		d.FullName(c.Table), d.hooks.quote(c.Column.ColumnName), c.DefaultValue)
}

func (d *dumper) VisitDropColumnDefault(c *command.DropColumnDefault) error {
	return d.emit("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", d.FullName(c.Table), d.hooks.quote(c.Column.ColumnName))
}

func (d *dumper) VisitAddPrimaryKey(c *command.AddPrimaryKey) error {
	return d.emit("ALTER TABLE %s ADD %s", d.FullName(c.Table), d.primaryKeyClause(c.PrimaryKey))
}

func (d *dumper) VisitDropPrimaryKey(c *command.DropPrimaryKey) error {
	return d.emit("ALTER TABLE %s DROP CONSTRAINT %s", d.FullName(c.Table), d.hooks.quote(c.PrimaryKey.ConstraintName))
}

func (d *dumper) VisitAddForeignKey(c *command.AddForeignKey) error {
	return d.emit("ALTER TABLE %s ADD %s", d.FullName(c.Table), d.foreignKeyClause(c.ForeignKey))
}

func (d *dumper) VisitDropForeignKey(c *command.DropForeignKey) error {
	return d.emit("ALTER TABLE %s DROP CONSTRAINT %s", d.FullName(c.Table), d.hooks.quote(c.ForeignKey.ConstraintName))
}

func (d *dumper) createIndexStatement(c *command.CreateIndex, withFilter bool) string {
	unique := ""
	if c.Index.IsUnique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, d.hooks.quote(c.Index.ConstraintName), d.FullName(c.Table), d.indexColumns(c.Index.Columns))
	if withFilter && c.Index.Filter != "" {
		stmt += " WHERE " + c.Index.Filter
	}
	return stmt
}

func (d *dumper) VisitCreateIndex(c *command.CreateIndex) error {
	return d.emit("%s", d.createIndexStatement(c, true))
}

func (d *dumper) VisitDropIndex(c *command.DropIndex) error {
	return d.emit("DROP INDEX %s", d.FullName(model.NameInfo{SchemaName: c.Table.SchemaName, PureName: c.Index.ConstraintName}))
}

func (d *dumper) VisitAddUnique(c *command.AddUnique) error {
	return d.emit("ALTER TABLE %s ADD %s", d.FullName(c.Table), d.uniqueClause(c.Unique))
}

func (d *dumper) VisitDropUnique(c *command.DropUnique) error {
	return d.emit("ALTER TABLE %s DROP CONSTRAINT %s", d.FullName(c.Table), d.hooks.quote(c.Unique.ConstraintName))
}

func (d *dumper) VisitSetTableComment(c *command.SetTableComment) error {
	return d.emit("COMMENT ON TABLE %s IS %s", d.FullName(c.Table), d.commentLiteral(c.Comment))
}

func (d *dumper) VisitSetColumnComment(c *command.SetColumnComment) error {
	return d.emit("COMMENT ON COLUMN %s.%s IS %s",
		d.FullName(c.Table), d.hooks.quote(c.Column.ColumnName), d.commentLiteral(c.Comment))
}

func (d *dumper) commentLiteral(comment string) string {
	if comment == "" {
		return "NULL"
	}
	return d.hooks.literal(comment)
}

func (d *dumper) VisitCreateSQLObject(c *command.CreateSQLObject) error {
	return d.emit("%s", strings.TrimRight(strings.TrimSpace(c.Object.CreateSQL), ";"))
}

func sqlObjectKeyword(objectType model.ObjectType) string {
	switch objectType {
	case model.ObjectTypeMatView:
		return "MATERIALIZED VIEW"
	case model.ObjectTypeProcedure:
		return "PROCEDURE"
	case model.ObjectTypeFunction:
		return "FUNCTION"
	}
	return "VIEW"
}

func (d *dumper) VisitDropSQLObject(c *command.DropSQLObject) error {
	return d.emit("DROP %s %s", sqlObjectKeyword(c.Object.ObjectType), d.FullName(c.Object.Name()))
}

func (d *dumper) VisitRenameSQLObject(c *command.RenameSQLObject) error {
	return d.emit("ALTER %s %s RENAME TO %s",
		sqlObjectKeyword(c.Object.ObjectType), d.FullName(c.Object.Name()), d.hooks.quote(c.NewName))
}

func (d *dumper) assignments(values []command.ColumnValue, sep string) string {
	parts := make([]string, len(values))
	for i, cv := range values {
		if cv.Value == nil && sep == " AND " {
			parts[i] = d.hooks.quote(cv.Column) + " IS NULL"
			continue
		}
		parts[i] = d.hooks.quote(cv.Column) + " = " + d.hooks.literal(cv.Value)
	}
	return strings.Join(parts, sep)
}

func (d *dumper) VisitInsert(c *command.Insert) error {
	cols := make([]string, len(c.Values))
	vals := make([]string, len(c.Values))
	for i, cv := range c.Values {
		cols[i] = cv.Column
		vals[i] = d.hooks.literal(cv.Value)
	}
	return d.emit("INSERT INTO %s (%s) VALUES (%s)", d.FullName(c.Table), d.quoteList(cols), strings.Join(vals, ", "))
}

func (d *dumper) VisitUpdate(c *command.Update) error {
	return d.emit("UPDATE %s SET %s WHERE %s", d.FullName(c.Table), d.assignments(c.Set, ", "), d.assignments(c.Where, " AND "))
}

func (d *dumper) VisitDelete(c *command.Delete) error {
	return d.emit("DELETE FROM %s WHERE %s", d.FullName(c.Table), d.assignments(c.Where, " AND "))
}

func (d *dumper) VisitRawSQL(c *command.RawSQL) error {
	return d.emit("%s", c.SQL)
}

// columnDefinitionParts renders name, type, default and nullability; engines add their
// autoincrement and comment syntax around it.
func (d *dumper) columnDefinitionParts(col model.ColumnInfo, dataType string, withDefault bool) []string {
	parts := []string{d.hooks.quote(col.ColumnName), dataType}
	if withDefault && col.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+*col.DefaultValue)
	}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	return parts
}

func quoteWith(name string, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

// literalValue renders a literal with the common rules. Engines differ in booleans and string
// escaping, which they pass in.
func literalValue(v any, boolean func(bool) string, str func(string) string) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return str(val)
	case []byte:
		return str(string(val))
	case bool:
		return boolean(val)
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return str(val.Format("2006-01-02 15:04:05.999999999"))
	}
	return str(fmt.Sprint(v))
}

func standardString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func numericBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
