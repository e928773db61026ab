// Package model holds the structural snapshot of a relational database as produced by the
// analyser and consumed by the diff engines.
//
// Snapshots are plain values. Functions in this module never modify a snapshot they receive;
// they return a modified copy instead.
package model

import (
	"fmt"
	"strings"
)

// ObjectType names a kind of database object. The values double as the field names used in
// serialized snapshots.
type ObjectType string

const (
	ObjectTypeTable     ObjectType = "tables"
	ObjectTypeView      ObjectType = "views"
	ObjectTypeMatView   ObjectType = "matviews"
	ObjectTypeProcedure ObjectType = "procedures"
	ObjectTypeFunction  ObjectType = "functions"
	ObjectTypeSchema    ObjectType = "schemas"
)

// SQLObjectTypes lists the object types described by SQLObjectInfo, in creation order.
var SQLObjectTypes = []ObjectType{ObjectTypeFunction, ObjectTypeProcedure, ObjectTypeView, ObjectTypeMatView}

// NameInfo is the schema qualified name of an object.
type NameInfo struct {
	SchemaName string `json:"schemaName,omitempty" yaml:"schemaName,omitempty"`
	PureName   string `json:"pureName" yaml:"pureName"`
}

// String renders the name as schema.name, or just name when no schema is set.
func (n NameInfo) String() string {
	if n.SchemaName == "" {
		return n.PureName
	}
	return n.SchemaName + "." + n.PureName
}

// DatabaseInfo is a structural snapshot of one database.
type DatabaseInfo struct {
	Tables     []TableInfo     `json:"tables,omitempty" yaml:"tables,omitempty"`
	Views      []SQLObjectInfo `json:"views,omitempty" yaml:"views,omitempty"`
	MatViews   []SQLObjectInfo `json:"matviews,omitempty" yaml:"matviews,omitempty"`
	Procedures []SQLObjectInfo `json:"procedures,omitempty" yaml:"procedures,omitempty"`
	Functions  []SQLObjectInfo `json:"functions,omitempty" yaml:"functions,omitempty"`
	Schemas    []SchemaInfo    `json:"schemas,omitempty" yaml:"schemas,omitempty"`
}

// SchemaInfo describes a database schema (namespace).
type SchemaInfo struct {
	SchemaName string `json:"schemaName" yaml:"schemaName"`
	IsDefault  bool   `json:"isDefault,omitempty" yaml:"isDefault,omitempty"`
}

// TableInfo describes a table.
type TableInfo struct {
	PairingID     string `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ObjectID      string `json:"objectId,omitempty" yaml:"objectId,omitempty"`
	ContentHash   string `json:"contentHash,omitempty" yaml:"contentHash,omitempty"`
	SchemaName    string `json:"schemaName,omitempty" yaml:"schemaName,omitempty"`
	PureName      string `json:"pureName" yaml:"pureName"`
	ObjectComment string `json:"objectComment,omitempty" yaml:"objectComment,omitempty"`

	Columns     []ColumnInfo     `json:"columns" yaml:"columns"`
	PrimaryKey  *PrimaryKeyInfo  `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	ForeignKeys []ForeignKeyInfo `json:"foreignKeys,omitempty" yaml:"foreignKeys,omitempty"`
	Indexes     []IndexInfo      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Uniques     []UniqueInfo     `json:"uniques,omitempty" yaml:"uniques,omitempty"`

	// Rows declared by a deploy model, reconciled by key after the structure.
	PreloadedRows           []map[string]any `json:"preloadedRows,omitempty" yaml:"preloadedRows,omitempty"`
	PreloadedRowsKey        []string         `json:"preloadedRowsKey,omitempty" yaml:"preloadedRowsKey,omitempty"`
	PreloadedRowsInsertOnly []string         `json:"preloadedRowsInsertOnly,omitempty" yaml:"preloadedRowsInsertOnly,omitempty"`
}

// ColumnInfo describes a table column. A nil DefaultValue means the column has no default.
type ColumnInfo struct {
	PairingID     string  `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ColumnName    string  `json:"columnName" yaml:"columnName"`
	DataType      string  `json:"dataType" yaml:"dataType"`
	NotNull       bool    `json:"notNull,omitempty" yaml:"notNull,omitempty"`
	AutoIncrement bool    `json:"autoIncrement,omitempty" yaml:"autoIncrement,omitempty"`
	DefaultValue  *string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	ColumnComment string  `json:"columnComment,omitempty" yaml:"columnComment,omitempty"`
}

// IndexColumn is one column of a primary key, index or unique constraint.
type IndexColumn struct {
	ColumnName   string `json:"columnName" yaml:"columnName"`
	IsDescending bool   `json:"isDescending,omitempty" yaml:"isDescending,omitempty"`
}

// ColumnReference maps a foreign key column to the referenced column.
type ColumnReference struct {
	ColumnName    string `json:"columnName" yaml:"columnName"`
	RefColumnName string `json:"refColumnName" yaml:"refColumnName"`
}

type PrimaryKeyInfo struct {
	PairingID      string        `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ConstraintName string        `json:"constraintName,omitempty" yaml:"constraintName,omitempty"`
	Columns        []IndexColumn `json:"columns" yaml:"columns"`
}

type ForeignKeyInfo struct {
	PairingID      string            `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ConstraintName string            `json:"constraintName,omitempty" yaml:"constraintName,omitempty"`
	RefSchemaName  string            `json:"refSchemaName,omitempty" yaml:"refSchemaName,omitempty"`
	RefTableName   string            `json:"refTableName" yaml:"refTableName"`
	Columns        []ColumnReference `json:"columns" yaml:"columns"`
	UpdateAction   string            `json:"updateAction,omitempty" yaml:"updateAction,omitempty"`
	DeleteAction   string            `json:"deleteAction,omitempty" yaml:"deleteAction,omitempty"`
}

// RefName returns the name of the referenced table.
func (fk ForeignKeyInfo) RefName() NameInfo {
	return NameInfo{SchemaName: fk.RefSchemaName, PureName: fk.RefTableName}
}

type IndexInfo struct {
	PairingID      string        `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ConstraintName string        `json:"constraintName" yaml:"constraintName"`
	Columns        []IndexColumn `json:"columns" yaml:"columns"`
	IsUnique       bool          `json:"isUnique,omitempty" yaml:"isUnique,omitempty"`
	Filter         string        `json:"filter,omitempty" yaml:"filter,omitempty"`
}

type UniqueInfo struct {
	PairingID      string        `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ConstraintName string        `json:"constraintName,omitempty" yaml:"constraintName,omitempty"`
	Columns        []IndexColumn `json:"columns" yaml:"columns"`
}

// SQLObjectInfo describes a view, materialized view, procedure or function. The object is
// fully defined by its CreateSQL text.
type SQLObjectInfo struct {
	PairingID   string     `json:"pairingId,omitempty" yaml:"pairingId,omitempty"`
	ObjectType  ObjectType `json:"objectType" yaml:"objectType"`
	ObjectID    string     `json:"objectId,omitempty" yaml:"objectId,omitempty"`
	ContentHash string     `json:"contentHash,omitempty" yaml:"contentHash,omitempty"`
	SchemaName  string     `json:"schemaName,omitempty" yaml:"schemaName,omitempty"`
	PureName    string     `json:"pureName" yaml:"pureName"`
	CreateSQL   string     `json:"createSql" yaml:"createSql"`
}

// Name returns the qualified name of the table.
func (t TableInfo) Name() NameInfo {
	return NameInfo{SchemaName: t.SchemaName, PureName: t.PureName}
}

// Name returns the qualified name of the object.
func (o SQLObjectInfo) Name() NameInfo {
	return NameInfo{SchemaName: o.SchemaName, PureName: o.PureName}
}

// Column looks a column up by name.
func (t TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, col := range t.Columns {
		if col.ColumnName == name {
			return col, true
		}
	}
	return ColumnInfo{}, false
}

// PrimaryKeyColumns returns the names of the primary key columns, in key order.
func (t TableInfo) PrimaryKeyColumns() []string {
	if t.PrimaryKey == nil {
		return nil
	}
	names := make([]string, 0, len(t.PrimaryKey.Columns))
	for _, col := range t.PrimaryKey.Columns {
		names = append(names, col.ColumnName)
	}
	return names
}

// Table looks a table up by name. An empty schema matches any schema.
func (db DatabaseInfo) Table(name NameInfo) (TableInfo, bool) {
	for _, table := range db.Tables {
		if table.PureName == name.PureName && (name.SchemaName == "" || table.SchemaName == name.SchemaName) {
			return table, true
		}
	}
	return TableInfo{}, false
}

// SQLObjects returns the SQL objects of the given type.
func (db DatabaseInfo) SQLObjects(objectType ObjectType) []SQLObjectInfo {
	switch objectType {
	case ObjectTypeView:
		return db.Views
	case ObjectTypeMatView:
		return db.MatViews
	case ObjectTypeProcedure:
		return db.Procedures
	case ObjectTypeFunction:
		return db.Functions
	}
	return nil
}

// AllSQLObjects returns every SQL object, grouped by type in creation order.
func (db DatabaseInfo) AllSQLObjects() []SQLObjectInfo {
	var objects []SQLObjectInfo
	for _, objectType := range SQLObjectTypes {
		objects = append(objects, db.SQLObjects(objectType)...)
	}
	return objects
}

// WithSQLObjects returns a copy of db with the SQL objects replaced, distributed by type.
func (db DatabaseInfo) WithSQLObjects(objects []SQLObjectInfo) DatabaseInfo {
	res := db
	res.Views, res.MatViews, res.Procedures, res.Functions = nil, nil, nil, nil
	for _, obj := range objects {
		switch obj.ObjectType {
		case ObjectTypeView:
			res.Views = append(res.Views, obj)
		case ObjectTypeMatView:
			res.MatViews = append(res.MatViews, obj)
		case ObjectTypeProcedure:
			res.Procedures = append(res.Procedures, obj)
		case ObjectTypeFunction:
			res.Functions = append(res.Functions, obj)
		}
	}
	return res
}

// IsEmpty reports whether the snapshot contains no objects at all.
func (db DatabaseInfo) IsEmpty() bool {
	return len(db.Tables) == 0 && len(db.AllSQLObjects()) == 0 && len(db.Schemas) == 0
}

// Validate checks that object identity (object type, schema, name) is unique.
func (db DatabaseInfo) Validate() error {
	seen := make(map[string]bool)
	check := func(objectType ObjectType, name NameInfo) error {
		key := string(objectType) + "/" + name.String()
		if seen[key] {
			return fmt.Errorf("duplicate %s object %s", strings.TrimSuffix(string(objectType), "s"), name)
		}
		seen[key] = true
		return nil
	}
	for _, table := range db.Tables {
		if err := check(ObjectTypeTable, table.Name()); err != nil {
			return err
		}
	}
	for _, obj := range db.AllSQLObjects() {
		if err := check(obj.ObjectType, obj.Name()); err != nil {
			return err
		}
	}
	for _, schema := range db.Schemas {
		if err := check(ObjectTypeSchema, NameInfo{PureName: schema.SchemaName}); err != nil {
			return err
		}
	}
	return nil
}
