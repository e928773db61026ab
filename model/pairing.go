package model

import (
	"fmt"

	"github.com/google/uuid"
)

// pairingNamespace seeds the name based uuids used as positional pairing ids.
var pairingNamespace = uuid.MustParse("6f1c1e0a-3f9e-5d8b-9c34-2b7c0d5e8a41")

func positionalID(path string) string {
	return uuid.NewSHA1(pairingNamespace, []byte(path)).String()
}

// GenerateDbPairingID returns a copy of db in which every table, column, constraint and SQL
// object that has no pairing id receives one derived from its position in the snapshot.
// Existing ids are kept, so a snapshot derived from an earlier paired snapshot stays paired
// with it. Two snapshots analysed independently from the same database get the same ids.
func GenerateDbPairingID(db DatabaseInfo) DatabaseInfo {
	res := db.Clone()
	for i := range res.Tables {
		res.Tables[i] = GenerateTablePairingID(res.Tables[i], i)
	}
	for _, objectType := range SQLObjectTypes {
		objects := res.SQLObjects(objectType)
		for i := range objects {
			if objects[i].PairingID == "" {
				objects[i].PairingID = positionalID(fmt.Sprintf("%s/%d", objectType, i))
			}
		}
	}
	return res
}

// GenerateTablePairingID returns a copy of table with pairing ids filled in, using position as
// the table's index in its snapshot.
func GenerateTablePairingID(table TableInfo, position int) TableInfo {
	res := table.Clone()
	base := fmt.Sprintf("tables/%d", position)
	if res.PairingID == "" {
		res.PairingID = positionalID(base)
	}
	for i := range res.Columns {
		if res.Columns[i].PairingID == "" {
			res.Columns[i].PairingID = positionalID(fmt.Sprintf("%s/columns/%d", base, i))
		}
	}
	if res.PrimaryKey != nil && res.PrimaryKey.PairingID == "" {
		res.PrimaryKey.PairingID = positionalID(base + "/primaryKey")
	}
	for i := range res.ForeignKeys {
		if res.ForeignKeys[i].PairingID == "" {
			res.ForeignKeys[i].PairingID = positionalID(fmt.Sprintf("%s/foreignKeys/%d", base, i))
		}
	}
	for i := range res.Indexes {
		if res.Indexes[i].PairingID == "" {
			res.Indexes[i].PairingID = positionalID(fmt.Sprintf("%s/indexes/%d", base, i))
		}
	}
	for i := range res.Uniques {
		if res.Uniques[i].PairingID == "" {
			res.Uniques[i].PairingID = positionalID(fmt.Sprintf("%s/uniques/%d", base, i))
		}
	}
	return res
}

// ClearPairingIDs returns a copy of db without any pairing ids, which makes the diff engines
// match purely by name.
func ClearPairingIDs(db DatabaseInfo) DatabaseInfo {
	res := db.Clone()
	for i := range res.Tables {
		t := &res.Tables[i]
		t.PairingID = ""
		for j := range t.Columns {
			t.Columns[j].PairingID = ""
		}
		if t.PrimaryKey != nil {
			t.PrimaryKey.PairingID = ""
		}
		for j := range t.ForeignKeys {
			t.ForeignKeys[j].PairingID = ""
		}
		for j := range t.Indexes {
			t.Indexes[j].PairingID = ""
		}
		for j := range t.Uniques {
			t.Uniques[j].PairingID = ""
		}
	}
	for _, objectType := range SQLObjectTypes {
		objects := res.SQLObjects(objectType)
		for i := range objects {
			objects[i].PairingID = ""
		}
	}
	return res
}
