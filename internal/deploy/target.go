package deploy

import (
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/model"
)

// script is a free-form fragment with its uninstall counterpart, if any.
type script struct {
	fragment  Fragment
	uninstall *Fragment
}

// buildModel turns the declarative fragments into the target structure and collects the
// scripts in fragment order.
func buildModel(fragments []Fragment) (model.DatabaseInfo, []script, error) {
	var db model.DatabaseInfo
	var objects []model.SQLObjectInfo

	uninstalls := make(map[string]Fragment)
	for _, f := range fragments {
		if f.Kind == FragmentUninstall {
			uninstalls[f.ObjectName()] = f
		}
	}

	var scripts []script
	for _, f := range fragments {
		switch {
		case f.Kind == FragmentTable:
			db.Tables = append(db.Tables, f.Table.Clone())
		case f.Kind == FragmentUninstall:
			// runs together with its install script
		case f.IsScript():
			s := script{fragment: f}
			if f.Kind == FragmentInstall {
				if u, ok := uninstalls[f.ObjectName()]; ok {
					s.uninstall = &u
				}
			}
			scripts = append(scripts, s)
		default:
			objects = append(objects, model.SQLObjectInfo{
				ObjectType: sqlObjectTypes[f.Kind],
				PureName:   f.ObjectName(),
				CreateSQL:  strings.TrimSpace(f.Text),
			})
		}
	}
	db = db.WithSQLObjects(objects)

	if err := resolveReferences(&db); err != nil {
		return model.DatabaseInfo{}, nil, err
	}
	if err := db.Validate(); err != nil {
		return model.DatabaseInfo{}, nil, fmt.Errorf("invalid model: %w", err)
	}
	return db, scripts, nil
}

// resolveReferences fills foreign key columns declared without a referenced column with the
// single primary key column of the referenced table.
func resolveReferences(db *model.DatabaseInfo) error {
	for i := range db.Tables {
		t := &db.Tables[i]
		for j := range t.ForeignKeys {
			fk := &t.ForeignKeys[j]
			for k := range fk.Columns {
				ref := &fk.Columns[k]
				if ref.RefColumnName != "" {
					continue
				}
				target, ok := findTable(*db, fk.RefTableName)
				if !ok {
					return fmt.Errorf("table %s references unknown table %s", t.PureName, fk.RefTableName)
				}
				pk := target.PrimaryKeyColumns()
				if len(pk) != 1 {
					return fmt.Errorf("table %s references %s, which has no single column primary key; set refColumn", t.PureName, fk.RefTableName)
				}
				ref.RefColumnName = pk[0]
			}
		}
	}
	return nil
}

// findTable looks a table up by pure name, ignoring schemas.
func findTable(db model.DatabaseInfo, pureName string) (model.TableInfo, bool) {
	for _, t := range db.Tables {
		if t.PureName == pureName {
			return t, true
		}
	}
	return model.TableInfo{}, false
}
