package analyser

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/model"
)

// sqlServerCatalog reads the sys.* catalog views. Content signatures are modify_date values.
type sqlServerCatalog struct {
	db *sql.DB
}

const mssqlObjectTypes = `
	CASE o.type WHEN 'U' THEN 'tables' WHEN 'V' THEN 'views' WHEN 'P' THEN 'procedures' ELSE 'functions' END`

func (c *sqlServerCatalog) FastSnapshot(ctx context.Context) (model.FastSnapshot, error) {
	var res model.FastSnapshot
	query := `
		SELECT CAST(o.object_id AS varchar(20)), ` + mssqlObjectTypes + `, s.name, o.name,
			CONVERT(varchar(30), o.modify_date, 126)
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE o.type IN ('U', 'V', 'P', 'FN', 'IF', 'TF') AND o.is_ms_shipped = 0
		ORDER BY s.name, o.name`
	err := queryEach(ctx, c.db, query, nil, func(rows *sql.Rows) error {
		var obj model.FastObject
		var objectType string
		if err := rows.Scan(&obj.ObjectID, &objectType, &obj.SchemaName, &obj.PureName, &obj.ContentHash); err != nil {
			return err
		}
		obj.ObjectType = model.ObjectType(objectType)
		res.Objects = append(res.Objects, obj)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to query objects: %w", err)
	}
	return res, nil
}

// mssqlDataType rebuilds a declared type from sys.columns sizes.
func mssqlDataType(typeName string, maxLength, precision, scale int) string {
	switch strings.ToLower(typeName) {
	case "varchar", "char", "varbinary", "binary":
		if maxLength < 0 {
			return typeName + "(max)"
		}
		return fmt.Sprintf("%s(%d)", typeName, maxLength)
	case "nvarchar", "nchar":
		if maxLength < 0 {
			return typeName + "(max)"
		}
		return fmt.Sprintf("%s(%d)", typeName, maxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", typeName, precision, scale)
	case "datetime2", "time", "datetimeoffset":
		return fmt.Sprintf("%s(%d)", typeName, scale)
	}
	return typeName
}

func (c *sqlServerCatalog) Tables(ctx context.Context, ids []string) ([]model.TableInfo, error) {
	filter := newIDFilter(ids)
	set := newTableSet()

	err := queryEach(ctx, c.db, `
		SELECT CAST(t.object_id AS varchar(20)), s.name, t.name, COALESCE(CAST(ep.value AS nvarchar(4000)), '')
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.class = 1 AND ep.name = 'MS_Description'
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name`, nil, func(rows *sql.Rows) error {
		var t model.TableInfo
		if err := rows.Scan(&t.ObjectID, &t.SchemaName, &t.PureName, &t.ObjectComment); err != nil {
			return err
		}
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
		SELECT CAST(c.object_id AS varchar(20)), c.name, ty.name, c.max_length, c.precision, c.scale,
			c.is_nullable, c.is_identity, dc.definition, COALESCE(CAST(ep.value AS nvarchar(4000)), '')
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.class = 1 AND ep.name = 'MS_Description'
		WHERE t.is_ms_shipped = 0
		ORDER BY c.object_id, c.column_id`, nil, func(rows *sql.Rows) error {
		var id, typeName string
		var maxLength, precision, scale int
		var nullable bool
		var col model.ColumnInfo
		var def sql.NullString
		if err := rows.Scan(&id, &col.ColumnName, &typeName, &maxLength, &precision, &scale,
			&nullable, &col.AutoIncrement, &def, &col.ColumnComment); err != nil {
			return err
		}
		col.DataType = mssqlDataType(typeName, maxLength, precision, scale)
		col.NotNull = !nullable
		if !col.AutoIncrement {
			col.DefaultValue = nullString(def)
		}
		if t := set.get(id); t != nil {
			t.Columns = append(t.Columns, col)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	err = queryEach(ctx, c.db, `
		SELECT CAST(i.object_id AS varchar(20)), i.name, i.is_primary_key, i.is_unique_constraint, i.is_unique,
			COALESCE(i.filter_definition, ''), c.name, ic.is_descending_key
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE t.is_ms_shipped = 0 AND i.type > 0 AND ic.is_included_column = 0
		ORDER BY i.object_id, i.name, ic.key_ordinal`, nil, func(rows *sql.Rows) error {
		var id, name, filterDefinition, colName string
		var primary, uniqueConstraint, unique, desc bool
		if err := rows.Scan(&id, &name, &primary, &uniqueConstraint, &unique, &filterDefinition, &colName, &desc); err != nil {
			return err
		}
		kind := "index"
		switch {
		case primary:
			kind = "primary"
		case uniqueConstraint:
			kind = "unique"
		}
		filterDefinition = strings.TrimSuffix(strings.TrimPrefix(filterDefinition, "("), ")")
		set.addIndexColumn(id, kind, name, model.IndexColumn{ColumnName: colName, IsDescending: desc}, unique, filterDefinition)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	err = queryEach(ctx, c.db, `
		SELECT CAST(fk.parent_object_id AS varchar(20)), fk.name, rs.name, rt.name, pc.name, rc.name,
			fk.update_referential_action_desc, fk.delete_referential_action_desc
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		ORDER BY fk.parent_object_id, fk.name, fkc.constraint_column_id`, nil, func(rows *sql.Rows) error {
		var id, colName, refCol, onUpdate, onDelete string
		var fk model.ForeignKeyInfo
		if err := rows.Scan(&id, &fk.ConstraintName, &fk.RefSchemaName, &fk.RefTableName, &colName, &refCol, &onUpdate, &onDelete); err != nil {
			return err
		}
		fk.UpdateAction = referentialAction(onUpdate)
		fk.DeleteAction = referentialAction(onDelete)
		set.addForeignKeyColumn(id, fk, model.ColumnReference{ColumnName: colName, RefColumnName: refCol})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	return set.tables(), nil
}

func (c *sqlServerCatalog) SQLObjects(ctx context.Context, ids []string) ([]model.SQLObjectInfo, error) {
	filter := newIDFilter(ids)
	var res []model.SQLObjectInfo
	query := `
		SELECT CAST(o.object_id AS varchar(20)), ` + mssqlObjectTypes + `, s.name, o.name, m.definition
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		JOIN sys.sql_modules m ON m.object_id = o.object_id
		WHERE o.type IN ('V', 'P', 'FN', 'IF', 'TF') AND o.is_ms_shipped = 0
		ORDER BY s.name, o.name`
	err := queryEach(ctx, c.db, query, nil, func(rows *sql.Rows) error {
		var o model.SQLObjectInfo
		var objectType string
		if err := rows.Scan(&o.ObjectID, &objectType, &o.SchemaName, &o.PureName, &o.CreateSQL); err != nil {
			return err
		}
		o.ObjectType = model.ObjectType(objectType)
		o.CreateSQL = strings.TrimSpace(o.CreateSQL)
		if filter.has(o.ObjectID) {
			res = append(res, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query SQL modules: %w", err)
	}
	return res, nil
}

func (c *sqlServerCatalog) Schemas(ctx context.Context) ([]model.SchemaInfo, error) {
	var res []model.SchemaInfo
	err := queryEach(ctx, c.db, `
		SELECT name FROM sys.schemas
		WHERE schema_id < 16384 AND name NOT IN ('guest', 'INFORMATION_SCHEMA', 'sys')
		ORDER BY name`, nil, func(rows *sql.Rows) error {
		var s model.SchemaInfo
		if err := rows.Scan(&s.SchemaName); err != nil {
			return err
		}
		s.IsDefault = s.SchemaName == "dbo"
		res = append(res, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query schemas: %w", err)
	}
	return res, nil
}
