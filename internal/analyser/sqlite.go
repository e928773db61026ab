package analyser

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dbgate/dbdeploy/model"
)

// sqliteCatalog reads sqlite_master and the pragma table-valued functions. Object ids are
// names; the content signature is the stored CREATE statement plus those of the table's indexes.
type sqliteCatalog struct {
	db *sql.DB
}

type sqliteMasterRow struct {
	objectType string
	name       string
	sql        string
}

func (c *sqliteCatalog) master(ctx context.Context) (tables, views []sqliteMasterRow, indexSQL map[string][]string, err error) {
	indexSQL = make(map[string][]string)
	err = queryEach(ctx, c.db, `
		SELECT type, name, tbl_name, COALESCE(sql, '') FROM sqlite_master
		WHERE type IN ('table', 'view', 'index') AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`, nil, func(rows *sql.Rows) error {
		var r sqliteMasterRow
		var tableName string
		if err := rows.Scan(&r.objectType, &r.name, &tableName, &r.sql); err != nil {
			return err
		}
		switch r.objectType {
		case "table":
			tables = append(tables, r)
		case "view":
			views = append(views, r)
		case "index":
			if r.sql != "" {
				indexSQL[tableName] = append(indexSQL[tableName], r.sql)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query sqlite_master: %w", err)
	}
	return tables, views, indexSQL, nil
}

func (c *sqliteCatalog) FastSnapshot(ctx context.Context) (model.FastSnapshot, error) {
	var res model.FastSnapshot
	tables, views, indexSQL, err := c.master(ctx)
	if err != nil {
		return res, err
	}
	for _, t := range tables {
		res.Objects = append(res.Objects, model.FastObject{
			ObjectType:  model.ObjectTypeTable,
			ObjectID:    t.name,
			PureName:    t.name,
			ContentHash: strings.Join(append([]string{t.sql}, indexSQL[t.name]...), ";\n"),
		})
	}
	for _, v := range views {
		res.Objects = append(res.Objects, model.FastObject{
			ObjectType:  model.ObjectTypeView,
			ObjectID:    v.name,
			PureName:    v.name,
			ContentHash: v.sql,
		})
	}
	return res, nil
}

func (c *sqliteCatalog) Tables(ctx context.Context, ids []string) ([]model.TableInfo, error) {
	filter := newIDFilter(ids)
	tables, _, _, err := c.master(ctx)
	if err != nil {
		return nil, err
	}
	var res []model.TableInfo
	for _, row := range tables {
		if !filter.has(row.name) {
			continue
		}
		t, err := c.table(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("failed to analyse table %s: %w", row.name, err)
		}
		res = append(res, t)
	}
	return res, nil
}

func (c *sqliteCatalog) table(ctx context.Context, row sqliteMasterRow) (model.TableInfo, error) {
	t := model.TableInfo{ObjectID: row.name, PureName: row.name}

	type pkColumn struct {
		position int
		name     string
	}
	var pkColumns []pkColumn
	err := queryEach(ctx, c.db, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`,
		[]any{row.name}, func(rows *sql.Rows) error {
			var col model.ColumnInfo
			var def sql.NullString
			var pk int
			if err := rows.Scan(&col.ColumnName, &col.DataType, &col.NotNull, &def, &pk); err != nil {
				return err
			}
			col.DefaultValue = nullString(def)
			if pk > 0 {
				pkColumns = append(pkColumns, pkColumn{position: pk, name: col.ColumnName})
			}
			t.Columns = append(t.Columns, col)
			return nil
		})
	if err != nil {
		return t, fmt.Errorf("failed to query columns: %w", err)
	}
	if len(pkColumns) > 0 {
		sort.Slice(pkColumns, func(i, j int) bool { return pkColumns[i].position < pkColumns[j].position })
		t.PrimaryKey = &model.PrimaryKeyInfo{}
		for _, pk := range pkColumns {
			t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, model.IndexColumn{ColumnName: pk.name})
		}
		// only INTEGER PRIMARY KEY AUTOINCREMENT counts as autoincrement
		if len(pkColumns) == 1 && strings.Contains(strings.ToUpper(row.sql), "AUTOINCREMENT") {
			for i := range t.Columns {
				if t.Columns[i].ColumnName == pkColumns[0].name && strings.EqualFold(t.Columns[i].DataType, "integer") {
					t.Columns[i].AutoIncrement = true
					t.Columns[i].DefaultValue = nil
				}
			}
		}
	}

	type indexRow struct {
		name    string
		unique  bool
		origin  string
		partial bool
	}
	var indexes []indexRow
	err = queryEach(ctx, c.db, `SELECT name, "unique", origin, partial FROM pragma_index_list(?) ORDER BY name`,
		[]any{row.name}, func(rows *sql.Rows) error {
			var ix indexRow
			if err := rows.Scan(&ix.name, &ix.unique, &ix.origin, &ix.partial); err != nil {
				return err
			}
			indexes = append(indexes, ix)
			return nil
		})
	if err != nil {
		return t, fmt.Errorf("failed to query indexes: %w", err)
	}
	for _, ix := range indexes {
		if ix.origin == "pk" {
			continue
		}
		var columns []model.IndexColumn
		err := queryEach(ctx, c.db, `SELECT name, "desc" FROM pragma_index_xinfo(?) WHERE key = 1 ORDER BY seqno`,
			[]any{ix.name}, func(rows *sql.Rows) error {
				var name sql.NullString
				var col model.IndexColumn
				if err := rows.Scan(&name, &col.IsDescending); err != nil {
					return err
				}
				col.ColumnName = name.String
				columns = append(columns, col)
				return nil
			})
		if err != nil {
			return t, fmt.Errorf("failed to query columns of index %s: %w", ix.name, err)
		}
		if ix.origin == "u" {
			t.Uniques = append(t.Uniques, model.UniqueInfo{Columns: columns})
			continue
		}
		index := model.IndexInfo{ConstraintName: ix.name, Columns: columns, IsUnique: ix.unique}
		if ix.partial {
			var indexSQL string
			if err := c.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?`, ix.name).Scan(&indexSQL); err != nil {
				return t, fmt.Errorf("failed to read index %s: %w", ix.name, err)
			}
			index.Filter = indexFilter(indexSQL)
		}
		t.Indexes = append(t.Indexes, index)
	}

	err = queryEach(ctx, c.db, `SELECT id, "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`,
		[]any{row.name}, func(rows *sql.Rows) error {
			var id int
			var fk model.ForeignKeyInfo
			var from string
			var to sql.NullString
			var onUpdate, onDelete string
			if err := rows.Scan(&id, &fk.RefTableName, &from, &to, &onUpdate, &onDelete); err != nil {
				return err
			}
			fk.UpdateAction = referentialAction(onUpdate)
			fk.DeleteAction = referentialAction(onDelete)
			ref := model.ColumnReference{ColumnName: from, RefColumnName: to.String}
			// rows of one constraint share the id; constraints carry no name
			key := fmt.Sprintf("#%d", id)
			for i := range t.ForeignKeys {
				if t.ForeignKeys[i].ConstraintName == key {
					t.ForeignKeys[i].Columns = append(t.ForeignKeys[i].Columns, ref)
					return nil
				}
			}
			fk.ConstraintName = key
			fk.Columns = []model.ColumnReference{ref}
			t.ForeignKeys = append(t.ForeignKeys, fk)
			return nil
		})
	if err != nil {
		return t, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	for i := range t.ForeignKeys {
		t.ForeignKeys[i].ConstraintName = ""
	}
	return t, nil
}

// indexFilter extracts the WHERE clause of a partial index definition.
func indexFilter(createSQL string) string {
	i := strings.LastIndex(strings.ToUpper(createSQL), " WHERE ")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(createSQL[i+len(" WHERE "):])
}

func (c *sqliteCatalog) SQLObjects(ctx context.Context, ids []string) ([]model.SQLObjectInfo, error) {
	filter := newIDFilter(ids)
	_, views, _, err := c.master(ctx)
	if err != nil {
		return nil, err
	}
	var res []model.SQLObjectInfo
	for _, v := range views {
		if filter.has(v.name) {
			res = append(res, model.SQLObjectInfo{
				ObjectType: model.ObjectTypeView,
				ObjectID:   v.name,
				PureName:   v.name,
				CreateSQL:  v.sql,
			})
		}
	}
	return res, nil
}

func (c *sqliteCatalog) Schemas(ctx context.Context) ([]model.SchemaInfo, error) {
	return nil, nil
}
