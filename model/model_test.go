package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testDatabase() DatabaseInfo {
	return DatabaseInfo{
		Tables: []TableInfo{
			{
				PureName: "customers",
				Columns: []ColumnInfo{
					{ColumnName: "id", DataType: "int", NotNull: true},
					{ColumnName: "name", DataType: "varchar(100)", DefaultValue: StringPtr("'n/a'")},
				},
				PrimaryKey: &PrimaryKeyInfo{Columns: []IndexColumn{{ColumnName: "id"}}},
			},
			{
				PureName: "orders",
				Columns: []ColumnInfo{
					{ColumnName: "id", DataType: "int", NotNull: true},
					{ColumnName: "customer_id", DataType: "int"},
				},
				ForeignKeys: []ForeignKeyInfo{{
					RefTableName: "customers",
					Columns:      []ColumnReference{{ColumnName: "customer_id", RefColumnName: "id"}},
				}},
			},
		},
		Views: []SQLObjectInfo{{ObjectType: ObjectTypeView, PureName: "v1", CreateSQL: "CREATE VIEW v1 AS SELECT 1"}},
	}
}

func TestGenerateDbPairingIDIsPositional(t *testing.T) {
	first := GenerateDbPairingID(testDatabase())
	second := GenerateDbPairingID(testDatabase())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("independently paired snapshots differ (-first +second):\n%s", diff)
	}

	if first.Tables[0].PairingID == "" || first.Tables[0].Columns[1].PairingID == "" {
		t.Fatalf("expected pairing ids to be assigned, got %+v", first.Tables[0])
	}
	if first.Tables[0].PairingID == first.Tables[1].PairingID {
		t.Errorf("tables at different positions share pairing id %s", first.Tables[0].PairingID)
	}
	if first.Tables[0].Columns[0].PairingID == first.Tables[1].Columns[0].PairingID {
		t.Errorf("columns of different tables share pairing id")
	}
	if first.Views[0].PairingID == "" {
		t.Errorf("expected view pairing id")
	}
}

func TestGenerateDbPairingIDKeepsExistingIDs(t *testing.T) {
	db := testDatabase()
	db.Tables[0].Columns[1].PairingID = "fixed"

	paired := GenerateDbPairingID(db)
	if got := paired.Tables[0].Columns[1].PairingID; got != "fixed" {
		t.Errorf("PairingID = %q; want %q", got, "fixed")
	}
}

func TestGenerateDbPairingIDDoesNotMutateInput(t *testing.T) {
	db := testDatabase()
	before := db.Clone()

	_ = GenerateDbPairingID(db)

	if diff := cmp.Diff(before, db); diff != "" {
		t.Errorf("input snapshot was modified (-before +after):\n%s", diff)
	}
}

func TestClearPairingIDs(t *testing.T) {
	cleared := ClearPairingIDs(GenerateDbPairingID(testDatabase()))
	if diff := cmp.Diff(testDatabase(), cleared); diff != "" {
		t.Errorf("ClearPairingIDs did not restore the snapshot (-want +got):\n%s", diff)
	}
}

func TestCloneIsDeep(t *testing.T) {
	db := testDatabase()
	clone := db.Clone()

	clone.Tables[0].Columns[0].ColumnName = "changed"
	*clone.Tables[0].Columns[1].DefaultValue = "'other'"
	clone.Tables[0].PrimaryKey.Columns[0].ColumnName = "changed"
	clone.Tables[1].ForeignKeys[0].Columns[0].RefColumnName = "changed"

	if diff := cmp.Diff(testDatabase(), db); diff != "" {
		t.Errorf("modifying the clone changed the original:\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	db := testDatabase()
	if err := db.Validate(); err != nil {
		t.Fatalf("Validate() = %v; want nil", err)
	}

	db.Tables = append(db.Tables, TableInfo{PureName: "orders"})
	if err := db.Validate(); err == nil {
		t.Errorf("expected duplicate table to fail validation")
	}

	other := testDatabase()
	other.Tables = append(other.Tables, TableInfo{SchemaName: "archive", PureName: "orders"})
	if err := other.Validate(); err != nil {
		t.Errorf("same name in another schema should be valid, got %v", err)
	}

	views := testDatabase()
	views.Procedures = []SQLObjectInfo{{ObjectType: ObjectTypeProcedure, PureName: "v1"}}
	if err := views.Validate(); err != nil {
		t.Errorf("same name with another object type should be valid, got %v", err)
	}
}

func TestWithSQLObjects(t *testing.T) {
	db := testDatabase()
	res := db.WithSQLObjects([]SQLObjectInfo{
		{ObjectType: ObjectTypeFunction, PureName: "f1"},
		{ObjectType: ObjectTypeView, PureName: "v2"},
	})

	if len(res.Views) != 1 || res.Views[0].PureName != "v2" {
		t.Errorf("Views = %+v; want only v2", res.Views)
	}
	if len(res.Functions) != 1 || res.Functions[0].PureName != "f1" {
		t.Errorf("Functions = %+v; want only f1", res.Functions)
	}
	if len(db.Views) != 1 || db.Views[0].PureName != "v1" {
		t.Errorf("original views modified: %+v", db.Views)
	}
}
