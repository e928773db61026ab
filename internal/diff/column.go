package diff

import (
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/model"
)

func columnMatchKeys(prefix string) []matchKey[model.ColumnInfo] {
	keys := []matchKey[model.ColumnInfo]{
		symmetric(func(c model.ColumnInfo) string { return c.PairingID }),
		symmetric(func(c model.ColumnInfo) string { return c.ColumnName }),
	}
	if prefix != "" {
		keys = append(keys, matchKey[model.ColumnInfo]{
			old: func(c model.ColumnInfo) string {
				if !strings.HasPrefix(c.ColumnName, prefix) {
					return ""
				}
				return strings.TrimPrefix(c.ColumnName, prefix)
			},
			new: func(c model.ColumnInfo) string { return c.ColumnName },
		})
	}
	return keys
}

func (a *tableAlter) diffColumns() {
	oldCols, newCols := a.oldTable.Columns, a.newTable.Columns
	pairs, oldOnly, _ := pairItems(oldCols, newCols, columnMatchKeys(a.opts.DeletedColumnPrefix)...)

	pairedNew := make(map[int]int, len(pairs))
	for _, p := range pairs {
		pairedNew[p.new] = p.old
	}

	for _, i := range oldOnly {
		a.removeColumn(oldCols[i])
	}
	for ni, col := range newCols {
		if oi, ok := pairedNew[ni]; ok {
			a.alterColumn(oldCols[oi], col)
			continue
		}
		a.result = append(a.result, col)
		a.colAdds = append(a.colAdds, &command.AddColumn{Table: a.name, Column: col})
	}
}

func (a *tableAlter) keep(col model.ColumnInfo, oldName string) {
	a.kept = append(a.kept, col)
	a.columnMap[col.ColumnName] = oldName
}

func (a *tableAlter) removeColumn(col model.ColumnInfo) {
	prefix := a.opts.DeletedColumnPrefix
	switch {
	case prefix != "" && strings.HasPrefix(col.ColumnName, prefix):
		a.keep(col, col.ColumnName)

	case prefix != "":
		deleted := col
		deleted.ColumnName = prefix + col.ColumnName
		deleted.NotNull = false
		a.columnRenames[col.ColumnName] = deleted.ColumnName
		a.keep(deleted, col.ColumnName)

		if !a.caps.RenameColumn {
			a.recreate = true
			return
		}
		a.colRenames = append(a.colRenames, &command.RenameColumn{Table: a.name, Column: col, NewName: deleted.ColumnName})
		if col.NotNull {
			renamed := col
			renamed.ColumnName = deleted.ColumnName
			if !a.caps.AlterColumn {
				a.recreate = true
				return
			}
			a.colAlters = append(a.colAlters, &command.AlterColumn{Table: a.name, Old: renamed, New: deleted})
		}

	case a.opts.NoDropColumn:
		a.keep(col, col.ColumnName)

	default:
		if !a.caps.DropColumn {
			a.recreate = true
			return
		}
		a.colDrops = append(a.colDrops, &command.DropColumn{Table: a.name, Column: col})
	}
}

// sameColumnDefinition compares what AlterColumn changes.
func sameColumnDefinition(a, b model.ColumnInfo) bool {
	return model.DataTypesEqual(a.DataType, b.DataType) &&
		a.NotNull == b.NotNull &&
		a.AutoIncrement == b.AutoIncrement
}

func (a *tableAlter) alterColumn(oldCol, newCol model.ColumnInfo) {
	a.result = append(a.result, newCol)
	a.columnMap[newCol.ColumnName] = oldCol.ColumnName

	current := oldCol
	if oldCol.ColumnName != newCol.ColumnName {
		a.columnRenames[oldCol.ColumnName] = newCol.ColumnName
		switch {
		case a.caps.RenameColumn:
			a.colRenames = append(a.colRenames, &command.RenameColumn{Table: a.name, Column: oldCol, NewName: newCol.ColumnName})
		case a.caps.RecreateTable:
			a.recreate = true
		default:
			// no rename support: the column is replaced and its data lost
			if a.caps.DropColumn {
				a.colDrops = append(a.colDrops, &command.DropColumn{Table: a.name, Column: oldCol})
			}
			a.colAdds = append(a.colAdds, &command.AddColumn{Table: a.name, Column: newCol})
			delete(a.columnMap, newCol.ColumnName)
			return
		}
		current.ColumnName = newCol.ColumnName
	}

	if !sameColumnDefinition(current, newCol) {
		if a.caps.AlterColumn {
			a.colAlters = append(a.colAlters, &command.AlterColumn{Table: a.name, Old: current, New: newCol})
		} else {
			a.recreate = true
		}
	}

	if !newCol.AutoIncrement && !model.DefaultsEqual(current.DefaultValue, newCol.DefaultValue) {
		switch {
		case !a.caps.AlterColumn:
			a.recreate = true
		case newCol.DefaultValue != nil:
			a.colAlters = append(a.colAlters, &command.SetColumnDefault{Table: a.name, Column: newCol, DefaultValue: *newCol.DefaultValue})
		case a.caps.SetNullDefaultInsteadOfDrop:
			a.colAlters = append(a.colAlters, &command.SetColumnDefault{Table: a.name, Column: newCol, DefaultValue: "NULL"})
		default:
			a.colAlters = append(a.colAlters, &command.DropColumnDefault{Table: a.name, Column: newCol})
		}
	}

	if a.caps.ColumnComments && current.ColumnComment != newCol.ColumnComment {
		a.comments = append(a.comments, &command.SetColumnComment{Table: a.name, Column: newCol, Comment: newCol.ColumnComment})
	}
}

// renamedColumn returns the name an old column ends with.
func (a *tableAlter) renamedColumn(name string) string {
	if renamed, ok := a.columnRenames[name]; ok {
		return renamed
	}
	return name
}
