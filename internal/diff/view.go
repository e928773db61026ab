package diff

import (
	"regexp"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

func sqlObjectMatchKeys(opts Options) []matchKey[model.SQLObjectInfo] {
	key := opts.tableKey()
	keys := []matchKey[model.SQLObjectInfo]{
		symmetric(func(o model.SQLObjectInfo) string {
			if o.PairingID == "" {
				return ""
			}
			if opts.strict() {
				return string(o.ObjectType) + "/" + o.SchemaName + "/" + o.PairingID
			}
			return string(o.ObjectType) + "/" + o.PairingID
		}),
		symmetric(func(o model.SQLObjectInfo) string {
			return string(o.ObjectType) + "/" + key(o.SchemaName, o.PureName)
		}),
	}
	if prefix := opts.DeletedSQLObjectPrefix; prefix != "" {
		keys = append(keys, matchKey[model.SQLObjectInfo]{
			old: func(o model.SQLObjectInfo) string {
				if !strings.HasPrefix(o.PureName, prefix) {
					return ""
				}
				return string(o.ObjectType) + "/" + key(o.SchemaName, strings.TrimPrefix(o.PureName, prefix))
			},
			new: func(o model.SQLObjectInfo) string {
				return string(o.ObjectType) + "/" + key(o.SchemaName, o.PureName)
			},
		})
	}
	return keys
}

// sameDefinition compares definitions, ignoring the object name when it differs.
func sameDefinition(old, new model.SQLObjectInfo) bool {
	oldSQL := old.CreateSQL
	if old.PureName != new.PureName {
		oldSQL = strings.Replace(oldSQL, old.PureName, new.PureName, 1)
	}
	return model.NormalizeSQL(oldSQL) == model.NormalizeSQL(new.CreateSQL)
}

// dependentObjects returns the indexes of the objects whose definition mentions one of tables,
// directly or through another dependent object.
func dependentObjects(objects []model.SQLObjectInfo, tables []string) map[int]bool {
	res := make(map[int]bool)
	names := tables
	for len(names) > 0 {
		patterns := make([]*regexp.Regexp, len(names))
		for i, name := range names {
			patterns[i] = referencePattern(name)
		}
		names = nil
		for i, obj := range objects {
			if res[i] {
				continue
			}
			for _, pattern := range patterns {
				if pattern.MatchString(obj.CreateSQL) {
					res[i] = true
					names = append(names, obj.PureName)
					break
				}
			}
		}
	}
	return res
}

// diffSQLObjects compares views, materialized views, procedures and functions. Changed objects
// are dropped and created again, and so are the old objects listed in dependents, which
// mention tables the structure phase rebuilds.
func diffSQLObjects(oldObjects, newObjects []model.SQLObjectInfo, dependents map[int]bool, opts Options, caps dialect.Capabilities) (drops, renames, creates []command.Command) {
	pairs, oldOnly, newOnly := pairItems(oldObjects, newObjects, sqlObjectMatchKeys(opts)...)

	var dropped, created []model.SQLObjectInfo
	for _, p := range pairs {
		oldObj, newObj := oldObjects[p.old], newObjects[p.new]
		switch {
		case !sameDefinition(oldObj, newObj) || dependents[p.old]:
			dropped = append(dropped, oldObj)
			created = append(created, newObj)
		case oldObj.PureName == newObj.PureName:
		case caps.RenameSQLObject:
			renames = append(renames, &command.RenameSQLObject{Object: oldObj, NewName: newObj.PureName})
		default:
			dropped = append(dropped, oldObj)
			created = append(created, newObj)
		}
	}

	prefix := opts.DeletedSQLObjectPrefix
	for _, i := range oldOnly {
		obj := oldObjects[i]
		kept := false
		switch {
		case prefix != "" && strings.HasPrefix(obj.PureName, prefix):
			// already marked deleted
			kept = true
		case prefix != "" && caps.RenameSQLObject:
			renames = append(renames, &command.RenameSQLObject{Object: obj, NewName: prefix + obj.PureName})
		case opts.NoDropSQLObject:
			kept = true
		default:
			dropped = append(dropped, obj)
		}
		// kept objects over a rebuilt table are created again from their own definition
		if kept && dependents[i] {
			dropped = append(dropped, obj)
			created = append(created, obj)
		}
	}
	for _, i := range newOnly {
		created = append(created, newObjects[i])
	}

	for _, obj := range reversedObjects(sortSQLObjectsByDependencies(dropped)) {
		drops = append(drops, &command.DropSQLObject{Object: obj})
	}
	for _, obj := range sortSQLObjectsByDependencies(created) {
		creates = append(creates, &command.CreateSQLObject{Object: obj})
	}
	return drops, renames, creates
}

func reversedObjects(objects []model.SQLObjectInfo) []model.SQLObjectInfo {
	order := make([]int, len(objects))
	for i := range order {
		order[i] = i
	}
	return pick(objects, reversed(order))
}
