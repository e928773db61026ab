package command

import (
	"fmt"

	"github.com/dbgate/dbdeploy/model"
)

// Operation is the kind of change a command performs, as shown in plans.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationAlter  Operation = "alter"
	OperationDrop   Operation = "drop"
	OperationRename Operation = "rename"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationRaw    Operation = "raw"
)

// Description summarizes a command for plans and logs.
type Description struct {
	Operation  Operation `json:"operation"`
	ObjectType string    `json:"type"`
	ObjectPath string    `json:"path"`
}

// Describe returns the description of a command.
func Describe(c Command) Description {
	var d describer
	// describer never fails
	_ = c.Accept(&d)
	return d.res
}

type describer struct {
	res Description
}

func (d *describer) set(op Operation, objectType, path string) error {
	d.res = Description{Operation: op, ObjectType: objectType, ObjectPath: path}
	return nil
}

func sub(table model.NameInfo, name string) string {
	return table.String() + "." + name
}

func singular(objectType model.ObjectType) string {
	switch objectType {
	case model.ObjectTypeMatView:
		return "materialized view"
	case model.ObjectTypeView:
		return "view"
	case model.ObjectTypeProcedure:
		return "procedure"
	case model.ObjectTypeFunction:
		return "function"
	}
	return string(objectType)
}

func (d *describer) VisitCreateSchema(c *CreateSchema) error {
	return d.set(OperationCreate, "schema", c.SchemaName)
}

func (d *describer) VisitDropSchema(c *DropSchema) error {
	return d.set(OperationDrop, "schema", c.SchemaName)
}

func (d *describer) VisitCreateTable(c *CreateTable) error {
	return d.set(OperationCreate, "table", c.Table.Name().String())
}

func (d *describer) VisitDropTable(c *DropTable) error {
	return d.set(OperationDrop, "table", c.Table.Name().String())
}

func (d *describer) VisitRenameTable(c *RenameTable) error {
	return d.set(OperationRename, "table", fmt.Sprintf("%s -> %s", c.Table, c.NewName))
}

func (d *describer) VisitRecreateTable(c *RecreateTable) error {
	return d.set(OperationAlter, "table", c.New.Name().String())
}

func (d *describer) VisitAddColumn(c *AddColumn) error {
	return d.set(OperationCreate, "column", sub(c.Table, c.Column.ColumnName))
}

func (d *describer) VisitDropColumn(c *DropColumn) error {
	return d.set(OperationDrop, "column", sub(c.Table, c.Column.ColumnName))
}

func (d *describer) VisitRenameColumn(c *RenameColumn) error {
	return d.set(OperationRename, "column", fmt.Sprintf("%s -> %s", sub(c.Table, c.Column.ColumnName), c.NewName))
}

func (d *describer) VisitAlterColumn(c *AlterColumn) error {
	return d.set(OperationAlter, "column", sub(c.Table, c.New.ColumnName))
}

func (d *describer) VisitSetColumnDefault(c *SetColumnDefault) error {
	return d.set(OperationAlter, "column", sub(c.Table, c.Column.ColumnName))
}

func (d *describer) VisitDropColumnDefault(c *DropColumnDefault) error {
	return d.set(OperationAlter, "column", sub(c.Table, c.Column.ColumnName))
}

func (d *describer) VisitAddPrimaryKey(c *AddPrimaryKey) error {
	return d.set(OperationCreate, "primary key", c.Table.String())
}

func (d *describer) VisitDropPrimaryKey(c *DropPrimaryKey) error {
	return d.set(OperationDrop, "primary key", c.Table.String())
}

func (d *describer) VisitAddForeignKey(c *AddForeignKey) error {
	return d.set(OperationCreate, "foreign key", sub(c.Table, c.ForeignKey.ConstraintName))
}

func (d *describer) VisitDropForeignKey(c *DropForeignKey) error {
	return d.set(OperationDrop, "foreign key", sub(c.Table, c.ForeignKey.ConstraintName))
}

func (d *describer) VisitCreateIndex(c *CreateIndex) error {
	return d.set(OperationCreate, "index", sub(c.Table, c.Index.ConstraintName))
}

func (d *describer) VisitDropIndex(c *DropIndex) error {
	return d.set(OperationDrop, "index", sub(c.Table, c.Index.ConstraintName))
}

func (d *describer) VisitAddUnique(c *AddUnique) error {
	return d.set(OperationCreate, "unique", sub(c.Table, c.Unique.ConstraintName))
}

func (d *describer) VisitDropUnique(c *DropUnique) error {
	return d.set(OperationDrop, "unique", sub(c.Table, c.Unique.ConstraintName))
}

func (d *describer) VisitSetTableComment(c *SetTableComment) error {
	return d.set(OperationAlter, "comment", c.Table.String())
}

func (d *describer) VisitSetColumnComment(c *SetColumnComment) error {
	return d.set(OperationAlter, "comment", sub(c.Table, c.Column.ColumnName))
}

func (d *describer) VisitCreateSQLObject(c *CreateSQLObject) error {
	return d.set(OperationCreate, singular(c.Object.ObjectType), c.Object.Name().String())
}

func (d *describer) VisitDropSQLObject(c *DropSQLObject) error {
	return d.set(OperationDrop, singular(c.Object.ObjectType), c.Object.Name().String())
}

func (d *describer) VisitRenameSQLObject(c *RenameSQLObject) error {
	return d.set(OperationRename, singular(c.Object.ObjectType), fmt.Sprintf("%s -> %s", c.Object.Name(), c.NewName))
}

func (d *describer) VisitInsert(c *Insert) error {
	return d.set(OperationInsert, "row", c.Table.String())
}

func (d *describer) VisitUpdate(c *Update) error {
	return d.set(OperationUpdate, "row", c.Table.String())
}

func (d *describer) VisitDelete(c *Delete) error {
	return d.set(OperationDelete, "row", c.Table.String())
}

func (d *describer) VisitRawSQL(c *RawSQL) error {
	return d.set(OperationRaw, "sql", "")
}
