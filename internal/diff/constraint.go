package diff

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/model"
)

func normalizeAction(action string) string {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action == "" {
		return "NO ACTION"
	}
	return action
}

// foreignKeySignature describes a foreign key structurally. Old keys are translated to the
// names their columns and referenced table end with.
func (a *tableAlter) foreignKeySignature(fk model.ForeignKeyInfo, old bool) string {
	table := a.newTable
	if old {
		table = a.oldTable
	}
	refSchema := fk.RefSchemaName
	if refSchema == "" {
		refSchema = table.SchemaName
	}
	refKey := a.tableKey(refSchema, fk.RefTableName)
	if old {
		if renamed, ok := a.tableRenames[refKey]; ok {
			refKey = a.tableKey(refSchema, renamed)
		}
	}

	cols := make([]string, len(fk.Columns))
	for i, ref := range fk.Columns {
		name := ref.ColumnName
		refName := ref.RefColumnName
		if old {
			name = a.renamedColumn(name)
			if fk.RefTableName == table.PureName {
				refName = a.renamedColumn(refName)
			}
		}
		cols[i] = name + "->" + refName
	}

	sig := fmt.Sprintf("%s(%s)", refKey, strings.Join(cols, ","))
	if !a.opts.IgnoreForeignKeyActions {
		sig += " delete " + normalizeAction(fk.DeleteAction) + " update " + normalizeAction(fk.UpdateAction)
	}
	return sig
}

// diffForeignKeys drops and recreates changed foreign keys and leaves unchanged ones alone.
func (a *tableAlter) diffForeignKeys() {
	oldFKs, newFKs := a.oldTable.ForeignKeys, a.newTable.ForeignKeys
	pairs, oldOnly, newOnly := pairItems(oldFKs, newFKs,
		symmetric(func(fk model.ForeignKeyInfo) string { return fk.PairingID }),
		symmetric(func(fk model.ForeignKeyInfo) string { return fk.ConstraintName }),
		matchKey[model.ForeignKeyInfo]{
			old: func(fk model.ForeignKeyInfo) string { return a.foreignKeySignature(fk, true) },
			new: func(fk model.ForeignKeyInfo) string { return a.foreignKeySignature(fk, false) },
		},
	)
	for _, p := range pairs {
		if a.foreignKeySignature(oldFKs[p.old], true) == a.foreignKeySignature(newFKs[p.new], false) {
			continue
		}
		oldOnly = append(oldOnly, p.old)
		newOnly = append(newOnly, p.new)
	}
	slices.Sort(oldOnly)
	slices.Sort(newOnly)
	// foreign keys are dropped before table renames, under the old name
	for _, i := range oldOnly {
		a.constraint(&a.fkDrops, &command.DropForeignKey{Table: a.oldTable.Name(), ForeignKey: oldFKs[i]})
	}
	for _, i := range newOnly {
		a.constraint(&a.fkAdds, &command.AddForeignKey{Table: a.name, ForeignKey: newFKs[i]})
	}
}
