package analyser

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
	"github.com/lib/pq"
)

// postgresCatalog reads pg_catalog. CockroachDB exposes the same catalog.
type postgresCatalog struct {
	db   *sql.DB
	caps dialect.Capabilities
}

const pgUserSchemas = `n.nspname NOT IN ('pg_catalog', 'information_schema', 'crdb_internal', 'pg_extension')
	AND n.nspname NOT LIKE 'pg\_toast%' AND n.nspname NOT LIKE 'pg\_temp%'`

const pgNotExtensionMember = `NOT EXISTS (
		SELECT 1 FROM pg_depend dep WHERE dep.objid = %s AND dep.deptype = 'e'
	)`

func (c *postgresCatalog) FastSnapshot(ctx context.Context) (model.FastSnapshot, error) {
	var res model.FastSnapshot
	tableQuery := `
		SELECT c.oid::text, n.nspname, c.relname,
			coalesce((
				SELECT string_agg(a.attname || ' ' || format_type(a.atttypid, a.atttypmod) || ' ' || a.attnotnull::text
					|| ' ' || coalesce(pg_get_expr(d.adbin, d.adrelid), '') || ' ' || coalesce(col_description(c.oid, a.attnum), ''),
					', ' ORDER BY a.attnum)
				FROM pg_attribute a
				LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
				WHERE a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
			), '')
			|| ';' || coalesce((
				SELECT string_agg(k.conname || ' ' || pg_get_constraintdef(k.oid), ', ' ORDER BY k.conname)
				FROM pg_constraint k WHERE k.conrelid = c.oid
			), '')
			|| ';' || coalesce((
				SELECT string_agg(pg_get_indexdef(i.indexrelid), ', ' ORDER BY i.indexrelid)
				FROM pg_index i WHERE i.indrelid = c.oid
			), '')
			|| ';' || coalesce(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p') AND ` + pgUserSchemas + `
		ORDER BY n.nspname, c.relname`
	err := queryEach(ctx, c.db, tableQuery, nil, func(rows *sql.Rows) error {
		obj := model.FastObject{ObjectType: model.ObjectTypeTable}
		if err := rows.Scan(&obj.ObjectID, &obj.SchemaName, &obj.PureName, &obj.ContentHash); err != nil {
			return err
		}
		res.Objects = append(res.Objects, obj)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to query tables: %w", err)
	}

	objects, err := c.SQLObjects(ctx, nil)
	if err != nil {
		return res, err
	}
	for _, o := range objects {
		res.Objects = append(res.Objects, model.FastObject{
			ObjectType:  o.ObjectType,
			ObjectID:    o.ObjectID,
			SchemaName:  o.SchemaName,
			PureName:    o.PureName,
			ContentHash: o.CreateSQL,
		})
	}
	return res, nil
}

func (c *postgresCatalog) Tables(ctx context.Context, ids []string) ([]model.TableInfo, error) {
	// a nil slice binds as NULL, which selects every table
	filter := pq.Array(ids)
	set := newTableSet()

	tableQuery := `
		SELECT c.oid::text, n.nspname, c.relname, coalesce(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p') AND ` + pgUserSchemas + `
			AND ($1::text[] IS NULL OR c.oid::text = ANY($1::text[]))
		ORDER BY n.nspname, c.relname`
	err := queryEach(ctx, c.db, tableQuery, []any{filter}, func(rows *sql.Rows) error {
		var t model.TableInfo
		if err := rows.Scan(&t.ObjectID, &t.SchemaName, &t.PureName, &t.ObjectComment); err != nil {
			return err
		}
		set.add(t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	if len(set.ids()) == 0 {
		return nil, nil
	}
	tableIDs := pq.Array(set.ids())

	if err := c.columns(ctx, set, tableIDs); err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	if err := c.constraints(ctx, set, tableIDs); err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	if err := c.indexes(ctx, set, tableIDs); err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	return set.tables(), nil
}

func (c *postgresCatalog) columns(ctx context.Context, set *tableSet, tableIDs any) error {
	identity := "''"
	if c.caps.IdentityColumns {
		identity = "a.attidentity::text"
	}
	query := `
		SELECT a.attrelid::text, a.attname, format_type(a.atttypid, a.atttypmod), a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid), coalesce(col_description(a.attrelid, a.attnum), ''), ` + identity + `
		FROM pg_attribute a
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE a.attrelid::text = ANY($1::text[]) AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attrelid, a.attnum`
	return queryEach(ctx, c.db, query, []any{tableIDs}, func(rows *sql.Rows) error {
		var id, identity string
		var col model.ColumnInfo
		var def sql.NullString
		if err := rows.Scan(&id, &col.ColumnName, &col.DataType, &col.NotNull, &def, &col.ColumnComment, &identity); err != nil {
			return err
		}
		col.DefaultValue = nullString(def)
		if identity != "" || (def.Valid && strings.HasPrefix(def.String, "nextval(")) {
			col.AutoIncrement = true
			col.DefaultValue = nil
		}
		if t := set.get(id); t != nil {
			t.Columns = append(t.Columns, col)
		}
		return nil
	})
}

func pgAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	}
	return "NO ACTION"
}

func (c *postgresCatalog) constraints(ctx context.Context, set *tableSet, tableIDs any) error {
	query := `
		SELECT k.conrelid::text, k.conname, k.contype::text,
			array(
				SELECT a.attname FROM unnest(k.conkey) WITH ORDINALITY u(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = k.conrelid AND a.attnum = u.attnum
				ORDER BY u.ord
			)::text[],
			coalesce(rn.nspname, ''), coalesce(rc.relname, ''),
			array(
				SELECT a.attname FROM unnest(k.confkey) WITH ORDINALITY u(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = k.confrelid AND a.attnum = u.attnum
				ORDER BY u.ord
			)::text[],
			k.confupdtype::text, k.confdeltype::text
		FROM pg_constraint k
		LEFT JOIN pg_class rc ON rc.oid = k.confrelid
		LEFT JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		WHERE k.conrelid::text = ANY($1::text[]) AND k.contype IN ('p', 'u', 'f')
		ORDER BY k.conrelid, k.contype, k.conname`
	return queryEach(ctx, c.db, query, []any{tableIDs}, func(rows *sql.Rows) error {
		var id, name, kind, refSchema, refTable, onUpdate, onDelete string
		var cols, refCols pq.StringArray
		if err := rows.Scan(&id, &name, &kind, &cols, &refSchema, &refTable, &refCols, &onUpdate, &onDelete); err != nil {
			return err
		}
		switch kind {
		case "p", "u":
			constraintKind := "primary"
			if kind == "u" {
				constraintKind = "unique"
			}
			for _, col := range cols {
				set.addIndexColumn(id, constraintKind, name, model.IndexColumn{ColumnName: col}, true, "")
			}
		case "f":
			fk := model.ForeignKeyInfo{
				ConstraintName: name,
				RefSchemaName:  refSchema,
				RefTableName:   refTable,
				UpdateAction:   pgAction(onUpdate),
				DeleteAction:   pgAction(onDelete),
			}
			for i, col := range cols {
				if i < len(refCols) {
					set.addForeignKeyColumn(id, fk, model.ColumnReference{ColumnName: col, RefColumnName: refCols[i]})
				}
			}
		}
		return nil
	})
}

func (c *postgresCatalog) indexes(ctx context.Context, set *tableSet, tableIDs any) error {
	query := `
		SELECT i.indrelid::text, ic.relname, i.indisunique, coalesce(pg_get_expr(i.indpred, i.indrelid), ''),
			array(SELECT pg_get_indexdef(i.indexrelid, k, true) FROM generate_series(1, i.indnatts) k ORDER BY k)::text[],
			array(
				SELECT CASE WHEN i.indoption[k - 1] & 1 = 1 THEN 'desc' ELSE 'asc' END
				FROM generate_series(1, i.indnatts) k ORDER BY k
			)::text[]
		FROM pg_index i
		JOIN pg_class ic ON ic.oid = i.indexrelid
		WHERE i.indrelid::text = ANY($1::text[]) AND NOT i.indisprimary
			AND NOT EXISTS (SELECT 1 FROM pg_constraint k WHERE k.conindid = i.indexrelid AND k.contype IN ('p', 'u'))
		ORDER BY i.indrelid, ic.relname`
	return queryEach(ctx, c.db, query, []any{tableIDs}, func(rows *sql.Rows) error {
		var id, name, filter string
		var unique bool
		var cols, directions pq.StringArray
		if err := rows.Scan(&id, &name, &unique, &filter, &cols, &directions); err != nil {
			return err
		}
		for i, col := range cols {
			desc := i < len(directions) && directions[i] == "desc"
			set.addIndexColumn(id, "index", name, model.IndexColumn{ColumnName: strings.Trim(col, `"`), IsDescending: desc}, unique, filter)
		}
		return nil
	})
}

func (c *postgresCatalog) SQLObjects(ctx context.Context, ids []string) ([]model.SQLObjectInfo, error) {
	filter := newIDFilter(ids)
	var res []model.SQLObjectInfo

	viewQuery := `
		SELECT c.oid::text, n.nspname, c.relname, c.relkind::text, pg_get_viewdef(c.oid, true)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('v', 'm') AND ` + pgUserSchemas + ` AND ` + fmt.Sprintf(pgNotExtensionMember, "c.oid") + `
		ORDER BY n.nspname, c.relname`
	err := queryEach(ctx, c.db, viewQuery, nil, func(rows *sql.Rows) error {
		var o model.SQLObjectInfo
		var kind, definition string
		if err := rows.Scan(&o.ObjectID, &o.SchemaName, &o.PureName, &kind, &definition); err != nil {
			return err
		}
		keyword := "VIEW"
		o.ObjectType = model.ObjectTypeView
		if kind == "m" {
			keyword = "MATERIALIZED VIEW"
			o.ObjectType = model.ObjectTypeMatView
		}
		if !filter.has(o.ObjectID) {
			return nil
		}
		o.CreateSQL = fmt.Sprintf("CREATE %s %s.%s AS\n%s", keyword,
			pq.QuoteIdentifier(o.SchemaName), pq.QuoteIdentifier(o.PureName), strings.TrimSpace(definition))
		res = append(res, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query views: %w", err)
	}

	if c.caps.Engine == dialect.CockroachDB {
		return res, nil
	}
	routineQuery := `
		SELECT p.oid::text, n.nspname, p.proname, p.prokind::text, pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind IN ('f', 'p') AND ` + pgUserSchemas + ` AND ` + fmt.Sprintf(pgNotExtensionMember, "p.oid") + `
		ORDER BY n.nspname, p.proname, p.oid`
	err = queryEach(ctx, c.db, routineQuery, nil, func(rows *sql.Rows) error {
		var o model.SQLObjectInfo
		var kind string
		if err := rows.Scan(&o.ObjectID, &o.SchemaName, &o.PureName, &kind, &o.CreateSQL); err != nil {
			return err
		}
		o.ObjectType = model.ObjectTypeFunction
		if kind == "p" {
			o.ObjectType = model.ObjectTypeProcedure
		}
		if filter.has(o.ObjectID) {
			o.CreateSQL = strings.TrimSpace(o.CreateSQL)
			res = append(res, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query routines: %w", err)
	}
	return res, nil
}

func (c *postgresCatalog) Schemas(ctx context.Context) ([]model.SchemaInfo, error) {
	var res []model.SchemaInfo
	query := `SELECT n.nspname FROM pg_namespace n WHERE ` + pgUserSchemas + ` ORDER BY n.nspname`
	err := queryEach(ctx, c.db, query, nil, func(rows *sql.Rows) error {
		var s model.SchemaInfo
		if err := rows.Scan(&s.SchemaName); err != nil {
			return err
		}
		s.IsDefault = s.SchemaName == c.caps.DefaultSchema
		res = append(res, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query schemas: %w", err)
	}
	return res, nil
}
