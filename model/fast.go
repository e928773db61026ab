package model

import "sort"

// FastObject is the cheap projection of one object used by incremental analysis.
type FastObject struct {
	ObjectType  ObjectType `json:"objectType" yaml:"objectType"`
	ObjectID    string     `json:"objectId" yaml:"objectId"`
	SchemaName  string     `json:"schemaName,omitempty" yaml:"schemaName,omitempty"`
	PureName    string     `json:"pureName" yaml:"pureName"`
	ContentHash string     `json:"contentHash" yaml:"contentHash"`
}

// FastSnapshot lists every object of a database with its content hash only.
type FastSnapshot struct {
	Objects []FastObject `json:"objects" yaml:"objects"`
}

// FastChanges is the result of comparing two fast snapshots.
type FastChanges struct {
	Added   []FastObject
	Changed []FastObject
	Removed []FastObject
}

// Empty reports whether nothing was added, changed or removed.
func (c FastChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// NeedsAnalysis returns the ids of added and changed objects of the given types.
func (c FastChanges) NeedsAnalysis(types ...ObjectType) []string {
	var ids []string
	for _, group := range [][]FastObject{c.Added, c.Changed} {
		for _, obj := range group {
			for _, t := range types {
				if obj.ObjectType == t {
					ids = append(ids, obj.ObjectID)
					break
				}
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// FastProjection returns the fast snapshot that corresponds to the full snapshot.
func (db DatabaseInfo) FastProjection() FastSnapshot {
	var res FastSnapshot
	for _, table := range db.Tables {
		res.Objects = append(res.Objects, FastObject{
			ObjectType:  ObjectTypeTable,
			ObjectID:    table.ObjectID,
			SchemaName:  table.SchemaName,
			PureName:    table.PureName,
			ContentHash: table.ContentHash,
		})
	}
	for _, obj := range db.AllSQLObjects() {
		res.Objects = append(res.Objects, FastObject{
			ObjectType:  obj.ObjectType,
			ObjectID:    obj.ObjectID,
			SchemaName:  obj.SchemaName,
			PureName:    obj.PureName,
			ContentHash: obj.ContentHash,
		})
	}
	return res
}

// Hash returns the content hash recorded for an object id.
func (s FastSnapshot) Hash(objectID string) (string, bool) {
	for _, obj := range s.Objects {
		if obj.ObjectID == objectID {
			return obj.ContentHash, true
		}
	}
	return "", false
}

func fastKey(obj FastObject) string {
	return string(obj.ObjectType) + "/" + obj.ObjectID
}

// CompareFast compares the previous fast snapshot with the current one. Objects are matched
// by type and object id; a different content hash marks the object as changed.
func CompareFast(prev, cur FastSnapshot) FastChanges {
	var res FastChanges
	prevByKey := make(map[string]FastObject, len(prev.Objects))
	for _, obj := range prev.Objects {
		prevByKey[fastKey(obj)] = obj
	}
	curKeys := make(map[string]bool, len(cur.Objects))
	for _, obj := range cur.Objects {
		key := fastKey(obj)
		curKeys[key] = true
		old, ok := prevByKey[key]
		switch {
		case !ok:
			res.Added = append(res.Added, obj)
		case old.ContentHash != obj.ContentHash || old.PureName != obj.PureName || old.SchemaName != obj.SchemaName:
			res.Changed = append(res.Changed, obj)
		}
	}
	for _, obj := range prev.Objects {
		if !curKeys[fastKey(obj)] {
			res.Removed = append(res.Removed, obj)
		}
	}
	return res
}
