// Package command defines the abstract operations produced by the diff engines and the deploy
// orchestrator. A renderer turns them into SQL for one engine family.
//
// The set of commands is closed: every command implements Accept by calling the matching
// Visitor method, so a Visitor that misses a command kind does not compile.
package command

import "github.com/dbgate/dbdeploy/model"

// Command is one abstract schema or data operation.
type Command interface {
	Accept(v Visitor) error
}

// Visitor handles every command kind.
type Visitor interface {
	VisitCreateSchema(c *CreateSchema) error
	VisitDropSchema(c *DropSchema) error
	VisitCreateTable(c *CreateTable) error
	VisitDropTable(c *DropTable) error
	VisitRenameTable(c *RenameTable) error
	VisitRecreateTable(c *RecreateTable) error
	VisitAddColumn(c *AddColumn) error
	VisitDropColumn(c *DropColumn) error
	VisitRenameColumn(c *RenameColumn) error
	VisitAlterColumn(c *AlterColumn) error
	VisitSetColumnDefault(c *SetColumnDefault) error
	VisitDropColumnDefault(c *DropColumnDefault) error
	VisitAddPrimaryKey(c *AddPrimaryKey) error
	VisitDropPrimaryKey(c *DropPrimaryKey) error
	VisitAddForeignKey(c *AddForeignKey) error
	VisitDropForeignKey(c *DropForeignKey) error
	VisitCreateIndex(c *CreateIndex) error
	VisitDropIndex(c *DropIndex) error
	VisitAddUnique(c *AddUnique) error
	VisitDropUnique(c *DropUnique) error
	VisitSetTableComment(c *SetTableComment) error
	VisitSetColumnComment(c *SetColumnComment) error
	VisitCreateSQLObject(c *CreateSQLObject) error
	VisitDropSQLObject(c *DropSQLObject) error
	VisitRenameSQLObject(c *RenameSQLObject) error
	VisitInsert(c *Insert) error
	VisitUpdate(c *Update) error
	VisitDelete(c *Delete) error
	VisitRawSQL(c *RawSQL) error
}

type CreateSchema struct {
	SchemaName string
}

type DropSchema struct {
	SchemaName string
}

// CreateTable creates Table. Foreign keys are rendered inline only when WithForeignKeys is
// set; otherwise they are added by separate AddForeignKey commands.
type CreateTable struct {
	Table           model.TableInfo
	WithForeignKeys bool
}

type DropTable struct {
	Table model.TableInfo
}

type RenameTable struct {
	Table   model.NameInfo
	NewName string
}

// RecreateTable rebuilds a table with the New structure and copies the data over. ColumnMap
// maps new column names to the old columns they are filled from.
type RecreateTable struct {
	Old       model.TableInfo
	New       model.TableInfo
	ColumnMap map[string]string
}

type AddColumn struct {
	Table  model.NameInfo
	Column model.ColumnInfo
}

type DropColumn struct {
	Table  model.NameInfo
	Column model.ColumnInfo
}

// RenameColumn carries the full column because some engines restate the definition.
type RenameColumn struct {
	Table   model.NameInfo
	Column  model.ColumnInfo
	NewName string
}

// AlterColumn changes type, nullability or autoincrement of Old into New. Defaults are
// changed by SetColumnDefault and DropColumnDefault.
type AlterColumn struct {
	Table model.NameInfo
	Old   model.ColumnInfo
	New   model.ColumnInfo
}

type SetColumnDefault struct {
	Table        model.NameInfo
	Column       model.ColumnInfo
	DefaultValue string
}

type DropColumnDefault struct {
	Table  model.NameInfo
	Column model.ColumnInfo
}

type AddPrimaryKey struct {
	Table      model.NameInfo
	PrimaryKey model.PrimaryKeyInfo
}

type DropPrimaryKey struct {
	Table      model.NameInfo
	PrimaryKey model.PrimaryKeyInfo
}

type AddForeignKey struct {
	Table      model.NameInfo
	ForeignKey model.ForeignKeyInfo
}

type DropForeignKey struct {
	Table      model.NameInfo
	ForeignKey model.ForeignKeyInfo
}

type CreateIndex struct {
	Table model.NameInfo
	Index model.IndexInfo
}

type DropIndex struct {
	Table model.NameInfo
	Index model.IndexInfo
}

type AddUnique struct {
	Table  model.NameInfo
	Unique model.UniqueInfo
}

type DropUnique struct {
	Table  model.NameInfo
	Unique model.UniqueInfo
}

type SetTableComment struct {
	Table   model.NameInfo
	Comment string
}

type SetColumnComment struct {
	Table   model.NameInfo
	Column  model.ColumnInfo
	Comment string
}

type CreateSQLObject struct {
	Object model.SQLObjectInfo
}

type DropSQLObject struct {
	Object model.SQLObjectInfo
}

type RenameSQLObject struct {
	Object  model.SQLObjectInfo
	NewName string
}

// ColumnValue is a column with the literal value it is set to or compared with.
type ColumnValue struct {
	Column string
	Value  any
}

type Insert struct {
	Table  model.NameInfo
	Values []ColumnValue
}

type Update struct {
	Table model.NameInfo
	Set   []ColumnValue
	Where []ColumnValue
}

type Delete struct {
	Table model.NameInfo
	Where []ColumnValue
}

// RawSQL passes a statement through unchanged.
type RawSQL struct {
	SQL string
}

func (c *CreateSchema) Accept(v Visitor) error      { return v.VisitCreateSchema(c) }
func (c *DropSchema) Accept(v Visitor) error        { return v.VisitDropSchema(c) }
func (c *CreateTable) Accept(v Visitor) error       { return v.VisitCreateTable(c) }
func (c *DropTable) Accept(v Visitor) error         { return v.VisitDropTable(c) }
func (c *RenameTable) Accept(v Visitor) error       { return v.VisitRenameTable(c) }
func (c *RecreateTable) Accept(v Visitor) error     { return v.VisitRecreateTable(c) }
func (c *AddColumn) Accept(v Visitor) error         { return v.VisitAddColumn(c) }
func (c *DropColumn) Accept(v Visitor) error        { return v.VisitDropColumn(c) }
func (c *RenameColumn) Accept(v Visitor) error      { return v.VisitRenameColumn(c) }
func (c *AlterColumn) Accept(v Visitor) error       { return v.VisitAlterColumn(c) }
func (c *SetColumnDefault) Accept(v Visitor) error  { return v.VisitSetColumnDefault(c) }
func (c *DropColumnDefault) Accept(v Visitor) error { return v.VisitDropColumnDefault(c) }
func (c *AddPrimaryKey) Accept(v Visitor) error     { return v.VisitAddPrimaryKey(c) }
func (c *DropPrimaryKey) Accept(v Visitor) error    { return v.VisitDropPrimaryKey(c) }
func (c *AddForeignKey) Accept(v Visitor) error     { return v.VisitAddForeignKey(c) }
func (c *DropForeignKey) Accept(v Visitor) error    { return v.VisitDropForeignKey(c) }
func (c *CreateIndex) Accept(v Visitor) error       { return v.VisitCreateIndex(c) }
func (c *DropIndex) Accept(v Visitor) error         { return v.VisitDropIndex(c) }
func (c *AddUnique) Accept(v Visitor) error         { return v.VisitAddUnique(c) }
func (c *DropUnique) Accept(v Visitor) error        { return v.VisitDropUnique(c) }
func (c *SetTableComment) Accept(v Visitor) error   { return v.VisitSetTableComment(c) }
func (c *SetColumnComment) Accept(v Visitor) error  { return v.VisitSetColumnComment(c) }
func (c *CreateSQLObject) Accept(v Visitor) error   { return v.VisitCreateSQLObject(c) }
func (c *DropSQLObject) Accept(v Visitor) error     { return v.VisitDropSQLObject(c) }
func (c *RenameSQLObject) Accept(v Visitor) error   { return v.VisitRenameSQLObject(c) }
func (c *Insert) Accept(v Visitor) error            { return v.VisitInsert(c) }
func (c *Update) Accept(v Visitor) error            { return v.VisitUpdate(c) }
func (c *Delete) Accept(v Visitor) error            { return v.VisitDelete(c) }
func (c *RawSQL) Accept(v Visitor) error            { return v.VisitRawSQL(c) }
