package model

import "slices"

// Clone returns a deep copy of the snapshot.
func (db DatabaseInfo) Clone() DatabaseInfo {
	res := DatabaseInfo{
		Views:      slices.Clone(db.Views),
		MatViews:   slices.Clone(db.MatViews),
		Procedures: slices.Clone(db.Procedures),
		Functions:  slices.Clone(db.Functions),
		Schemas:    slices.Clone(db.Schemas),
	}
	if db.Tables != nil {
		res.Tables = make([]TableInfo, len(db.Tables))
		for i, table := range db.Tables {
			res.Tables[i] = table.Clone()
		}
	}
	return res
}

// Clone returns a deep copy of the table.
func (t TableInfo) Clone() TableInfo {
	res := t
	if t.Columns != nil {
		res.Columns = make([]ColumnInfo, len(t.Columns))
		for i, col := range t.Columns {
			res.Columns[i] = col.Clone()
		}
	}
	if t.PrimaryKey != nil {
		pk := *t.PrimaryKey
		pk.Columns = slices.Clone(pk.Columns)
		res.PrimaryKey = &pk
	}
	if t.ForeignKeys != nil {
		res.ForeignKeys = make([]ForeignKeyInfo, len(t.ForeignKeys))
		for i, fk := range t.ForeignKeys {
			fk.Columns = slices.Clone(fk.Columns)
			res.ForeignKeys[i] = fk
		}
	}
	if t.Indexes != nil {
		res.Indexes = make([]IndexInfo, len(t.Indexes))
		for i, ix := range t.Indexes {
			ix.Columns = slices.Clone(ix.Columns)
			res.Indexes[i] = ix
		}
	}
	if t.Uniques != nil {
		res.Uniques = make([]UniqueInfo, len(t.Uniques))
		for i, uq := range t.Uniques {
			uq.Columns = slices.Clone(uq.Columns)
			res.Uniques[i] = uq
		}
	}
	if t.PreloadedRows != nil {
		res.PreloadedRows = make([]map[string]any, len(t.PreloadedRows))
		for i, row := range t.PreloadedRows {
			copied := make(map[string]any, len(row))
			for k, v := range row {
				copied[k] = v
			}
			res.PreloadedRows[i] = copied
		}
	}
	res.PreloadedRowsKey = slices.Clone(t.PreloadedRowsKey)
	res.PreloadedRowsInsertOnly = slices.Clone(t.PreloadedRowsInsertOnly)
	return res
}

// Clone returns a deep copy of the column.
func (c ColumnInfo) Clone() ColumnInfo {
	res := c
	if c.DefaultValue != nil {
		v := *c.DefaultValue
		res.DefaultValue = &v
	}
	return res
}

// StringPtr returns a pointer to s, for default values.
func StringPtr(s string) *string {
	return &s
}
