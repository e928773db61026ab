package analyser

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/model"
)

// mysqlCatalog reads information_schema of the current database. Object ids are names, since
// MySQL has no stable object identifiers.
type mysqlCatalog struct {
	db *sql.DB
}

func (c *mysqlCatalog) FastSnapshot(ctx context.Context) (model.FastSnapshot, error) {
	var res model.FastSnapshot
	tableQuery := `
		SELECT t.TABLE_NAME,
			CONCAT_WS(';',
				(SELECT GROUP_CONCAT(CONCAT_WS(' ', c.COLUMN_NAME, c.COLUMN_TYPE, c.IS_NULLABLE,
						COALESCE(c.COLUMN_DEFAULT, ''), c.EXTRA, c.COLUMN_COMMENT) ORDER BY c.ORDINAL_POSITION SEPARATOR ',')
					FROM information_schema.COLUMNS c
					WHERE c.TABLE_SCHEMA = t.TABLE_SCHEMA AND c.TABLE_NAME = t.TABLE_NAME),
				(SELECT GROUP_CONCAT(CONCAT_WS(' ', s.INDEX_NAME, s.NON_UNIQUE, s.COLUMN_NAME, COALESCE(s.COLLATION, ''))
						ORDER BY s.INDEX_NAME, s.SEQ_IN_INDEX SEPARATOR ',')
					FROM information_schema.STATISTICS s
					WHERE s.TABLE_SCHEMA = t.TABLE_SCHEMA AND s.TABLE_NAME = t.TABLE_NAME),
				(SELECT GROUP_CONCAT(CONCAT_WS(' ', r.CONSTRAINT_NAME, r.REFERENCED_TABLE_NAME, r.UPDATE_RULE, r.DELETE_RULE)
						ORDER BY r.CONSTRAINT_NAME SEPARATOR ',')
					FROM information_schema.REFERENTIAL_CONSTRAINTS r
					WHERE r.CONSTRAINT_SCHEMA = t.TABLE_SCHEMA AND r.TABLE_NAME = t.TABLE_NAME),
				t.TABLE_COMMENT)
		FROM information_schema.TABLES t
		WHERE t.TABLE_SCHEMA = DATABASE() AND t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY t.TABLE_NAME`
	err := queryEach(ctx, c.db, tableQuery, nil, func(rows *sql.Rows) error {
		obj := model.FastObject{ObjectType: model.ObjectTypeTable}
		var signature sql.NullString
		if err := rows.Scan(&obj.PureName, &signature); err != nil {
			return err
		}
		obj.ObjectID = obj.PureName
		obj.ContentHash = signature.String
		res.Objects = append(res.Objects, obj)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to query tables: %w", err)
	}

	err = c.eachSQLObject(ctx, func(o model.SQLObjectInfo, signature string) error {
		res.Objects = append(res.Objects, model.FastObject{
			ObjectType:  o.ObjectType,
			ObjectID:    o.ObjectID,
			PureName:    o.PureName,
			ContentHash: signature,
		})
		return nil
	})
	return res, err
}

// eachSQLObject lists views and routines with their catalog definitions, without CreateSQL.
func (c *mysqlCatalog) eachSQLObject(ctx context.Context, fn func(model.SQLObjectInfo, string) error) error {
	query := `
		SELECT 'views', TABLE_NAME, VIEW_DEFINITION
		FROM information_schema.VIEWS WHERE TABLE_SCHEMA = DATABASE()
		UNION ALL
		SELECT CASE ROUTINE_TYPE WHEN 'PROCEDURE' THEN 'procedures' ELSE 'functions' END, ROUTINE_NAME,
			CONCAT(COALESCE(ROUTINE_DEFINITION, ''), ' ', LAST_ALTERED)
		FROM information_schema.ROUTINES WHERE ROUTINE_SCHEMA = DATABASE()
		ORDER BY 1, 2`
	err := queryEach(ctx, c.db, query, nil, func(rows *sql.Rows) error {
		var o model.SQLObjectInfo
		var objectType string
		var signature sql.NullString
		if err := rows.Scan(&objectType, &o.PureName, &signature); err != nil {
			return err
		}
		o.ObjectType = model.ObjectType(objectType)
		o.ObjectID = o.PureName
		return fn(o, signature.String)
	})
	if err != nil {
		return fmt.Errorf("failed to query views and routines: %w", err)
	}
	return nil
}

func (c *mysqlCatalog) Tables(ctx context.Context, ids []string) ([]model.TableInfo, error) {
	filter := newIDFilter(ids)
	set := newTableSet()

	err := queryEach(ctx, c.db, `
		SELECT TABLE_NAME, TABLE_COMMENT FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, nil, func(rows *sql.Rows) error {
		var t model.TableInfo
		if err := rows.Scan(&t.PureName, &t.ObjectComment); err != nil {
			return err
		}
		t.ObjectID = t.PureName
		if filter.has(t.ObjectID) {
			set.add(t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	if len(set.ids()) == 0 {
		return nil, nil
	}

	err = queryEach(ctx, c.db, `
		SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA, COLUMN_COMMENT
		FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE()
		ORDER BY TABLE_NAME, ORDINAL_POSITION`, nil, func(rows *sql.Rows) error {
		var tableName, nullable, extra string
		var col model.ColumnInfo
		var def sql.NullString
		if err := rows.Scan(&tableName, &col.ColumnName, &col.DataType, &nullable, &def, &extra, &col.ColumnComment); err != nil {
			return err
		}
		col.NotNull = nullable == "NO"
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		if !col.AutoIncrement {
			col.DefaultValue = mysqlDefault(def, col.DataType, extra)
		}
		if t := set.get(tableName); t != nil {
			t.Columns = append(t.Columns, col)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	foreignKeys := make(map[string]bool)
	err = queryEach(ctx, c.db, `
		SELECT k.TABLE_NAME, k.CONSTRAINT_NAME, k.COLUMN_NAME, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME,
			r.UPDATE_RULE, r.DELETE_RULE
		FROM information_schema.KEY_COLUMN_USAGE k
		JOIN information_schema.REFERENTIAL_CONSTRAINTS r
			ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND r.TABLE_NAME = k.TABLE_NAME
		WHERE k.TABLE_SCHEMA = DATABASE() AND k.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`, nil, func(rows *sql.Rows) error {
		var tableName, colName, refCol, onUpdate, onDelete string
		var fk model.ForeignKeyInfo
		if err := rows.Scan(&tableName, &fk.ConstraintName, &colName, &fk.RefTableName, &refCol, &onUpdate, &onDelete); err != nil {
			return err
		}
		foreignKeys[tableName+"."+fk.ConstraintName] = true
		fk.UpdateAction = referentialAction(onUpdate)
		fk.DeleteAction = referentialAction(onDelete)
		set.addForeignKeyColumn(tableName, fk, model.ColumnReference{ColumnName: colName, RefColumnName: refCol})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	uniques := make(map[string]bool)
	err = queryEach(ctx, c.db, `
		SELECT TABLE_NAME, CONSTRAINT_NAME FROM information_schema.TABLE_CONSTRAINTS
		WHERE TABLE_SCHEMA = DATABASE() AND CONSTRAINT_TYPE = 'UNIQUE'`, nil, func(rows *sql.Rows) error {
		var tableName, name string
		if err := rows.Scan(&tableName, &name); err != nil {
			return err
		}
		uniques[tableName+"."+name] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query unique constraints: %w", err)
	}

	err = queryEach(ctx, c.db, `
		SELECT TABLE_NAME, INDEX_NAME, NON_UNIQUE, COLUMN_NAME, COALESCE(COLLATION, 'A')
		FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = DATABASE()
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`, nil, func(rows *sql.Rows) error {
		var tableName, indexName, collation string
		var nonUnique int
		var colName sql.NullString
		if err := rows.Scan(&tableName, &indexName, &nonUnique, &colName, &collation); err != nil {
			return err
		}
		key := tableName + "." + indexName
		col := model.IndexColumn{ColumnName: colName.String, IsDescending: collation == "D"}
		switch {
		case indexName == "PRIMARY":
			set.addIndexColumn(tableName, "primary", "", col, true, "")
		case uniques[key]:
			set.addIndexColumn(tableName, "unique", indexName, col, true, "")
		case foreignKeys[key]:
			// supporting index created implicitly for the foreign key
		default:
			set.addIndexColumn(tableName, "index", indexName, col, nonUnique == 0, "")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	return set.tables(), nil
}

// mysqlDefault converts COLUMN_DEFAULT into SQL. MySQL 8 reports string defaults unquoted;
// expression defaults are flagged with DEFAULT_GENERATED in EXTRA.
func mysqlDefault(def sql.NullString, dataType, extra string) *string {
	if !def.Valid {
		return nil
	}
	value := def.String
	upper := strings.ToUpper(value)
	switch {
	case strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED"),
		upper == "NULL", strings.HasPrefix(upper, "CURRENT_TIMESTAMP"),
		strings.HasPrefix(value, "'"):
		return &value
	}
	lowerType := strings.ToLower(dataType)
	for _, textual := range []string{"char", "text", "enum", "set", "date", "time", "blob", "binary"} {
		if strings.Contains(lowerType, textual) {
			quoted := "'" + strings.ReplaceAll(value, "'", "''") + "'"
			return &quoted
		}
	}
	return &value
}

func (c *mysqlCatalog) SQLObjects(ctx context.Context, ids []string) ([]model.SQLObjectInfo, error) {
	filter := newIDFilter(ids)
	var objects []model.SQLObjectInfo
	err := c.eachSQLObject(ctx, func(o model.SQLObjectInfo, _ string) error {
		if filter.has(o.ObjectID) {
			objects = append(objects, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range objects {
		createSQL, err := c.showCreate(ctx, objects[i])
		if err != nil {
			return nil, fmt.Errorf("failed to read definition of %s: %w", objects[i].PureName, err)
		}
		objects[i].CreateSQL = createSQL
	}
	return objects, nil
}

// showCreate runs SHOW CREATE for the object and returns its create statement column.
func (c *mysqlCatalog) showCreate(ctx context.Context, o model.SQLObjectInfo) (string, error) {
	keyword, column := "VIEW", "Create View"
	switch o.ObjectType {
	case model.ObjectTypeProcedure:
		keyword, column = "PROCEDURE", "Create Procedure"
	case model.ObjectTypeFunction:
		keyword, column = "FUNCTION", "Create Function"
	}
	name := "`" + strings.ReplaceAll(o.PureName, "`", "``") + "`"
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SHOW CREATE %s %s", keyword, name))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", sql.ErrNoRows
	}
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", err
	}
	for i, name := range columns {
		if strings.EqualFold(name, column) {
			return values[i].String, nil
		}
	}
	return "", fmt.Errorf("column %q missing from SHOW CREATE %s", column, keyword)
}

func (c *mysqlCatalog) Schemas(ctx context.Context) ([]model.SchemaInfo, error) {
	return nil, nil
}
