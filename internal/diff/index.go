package diff

import (
	"slices"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/model"
)

// columnList renders index columns in order, translating old names through the rename map.
func (a *tableAlter) columnList(cols []model.IndexColumn, old bool) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		name := col.ColumnName
		if old {
			name = a.renamedColumn(name)
		}
		parts[i] = name
		if col.IsDescending {
			parts[i] += " desc"
		}
	}
	return strings.Join(parts, ",")
}

// columnSet is columnList without order, for primary keys and unique constraints.
func (a *tableAlter) columnSet(cols []model.IndexColumn, old bool) string {
	parts := strings.Split(a.columnList(cols, old), ",")
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

func (a *tableAlter) diffPrimaryKey() {
	oldPK, newPK := a.oldTable.PrimaryKey, a.newTable.PrimaryKey
	var oldSig, newSig string
	if oldPK != nil && len(oldPK.Columns) > 0 {
		oldSig = a.columnSet(oldPK.Columns, true)
	}
	if newPK != nil && len(newPK.Columns) > 0 {
		newSig = a.columnSet(newPK.Columns, false)
	}
	if oldSig == newSig {
		return
	}
	if oldSig != "" {
		a.constraint(&a.pre, &command.DropPrimaryKey{Table: a.name, PrimaryKey: *oldPK})
	}
	if newSig != "" {
		a.constraint(&a.post, &command.AddPrimaryKey{Table: a.name, PrimaryKey: *newPK})
	}
}

func (a *tableAlter) diffUniques() {
	oldUniques, newUniques := a.oldTable.Uniques, a.newTable.Uniques
	pairs, oldOnly, newOnly := pairItems(oldUniques, newUniques,
		symmetric(func(u model.UniqueInfo) string { return u.PairingID }),
		symmetric(func(u model.UniqueInfo) string { return u.ConstraintName }),
		matchKey[model.UniqueInfo]{
			old: func(u model.UniqueInfo) string { return a.columnSet(u.Columns, true) },
			new: func(u model.UniqueInfo) string { return a.columnSet(u.Columns, false) },
		},
	)
	for _, p := range pairs {
		oldUq, newUq := oldUniques[p.old], newUniques[p.new]
		if a.columnSet(oldUq.Columns, true) == a.columnSet(newUq.Columns, false) {
			continue
		}
		oldOnly = append(oldOnly, p.old)
		newOnly = append(newOnly, p.new)
	}
	slices.Sort(oldOnly)
	slices.Sort(newOnly)
	for _, i := range oldOnly {
		a.constraint(&a.pre, &command.DropUnique{Table: a.name, Unique: oldUniques[i]})
	}
	for _, i := range newOnly {
		a.constraint(&a.post, &command.AddUnique{Table: a.name, Unique: newUniques[i]})
	}
}

func (a *tableAlter) indexSignature(ix model.IndexInfo, old bool) string {
	sig := a.columnList(ix.Columns, old)
	if ix.IsUnique {
		sig = "unique:" + sig
	}
	if ix.Filter != "" {
		sig += " where " + model.NormalizeSQL(ix.Filter)
	}
	return sig
}

// diffIndexes drops and recreates every index that changed in any way.
func (a *tableAlter) diffIndexes() {
	oldIndexes, newIndexes := a.oldTable.Indexes, a.newTable.Indexes
	pairs, oldOnly, newOnly := pairItems(oldIndexes, newIndexes,
		symmetric(func(ix model.IndexInfo) string { return ix.PairingID }),
		symmetric(func(ix model.IndexInfo) string { return ix.ConstraintName }),
		matchKey[model.IndexInfo]{
			old: func(ix model.IndexInfo) string { return a.indexSignature(ix, true) },
			new: func(ix model.IndexInfo) string { return a.indexSignature(ix, false) },
		},
	)
	for _, p := range pairs {
		if a.indexSignature(oldIndexes[p.old], true) == a.indexSignature(newIndexes[p.new], false) {
			continue
		}
		oldOnly = append(oldOnly, p.old)
		newOnly = append(newOnly, p.new)
	}
	slices.Sort(oldOnly)
	slices.Sort(newOnly)
	for _, i := range oldOnly {
		a.pre = append(a.pre, &command.DropIndex{Table: a.name, Index: oldIndexes[i]})
	}
	for _, i := range newOnly {
		a.post = append(a.post, &command.CreateIndex{Table: a.name, Index: newIndexes[i]})
	}
}
