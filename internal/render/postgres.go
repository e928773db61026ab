package render

import (
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
	"github.com/lib/pq"
)

// postgresRenderer renders PostgreSQL and CockroachDB.
type postgresRenderer struct {
	dumper
}

func newPostgres(caps dialect.Capabilities) *postgresRenderer {
	r := &postgresRenderer{}
	r.dumper = dumper{caps: caps, hooks: r, visitor: r}
	return r
}

func (r *postgresRenderer) quote(name string) string {
	return pq.QuoteIdentifier(name)
}

func (r *postgresRenderer) literal(v any) string {
	return literalValue(v, func(b bool) string {
		if b {
			return "TRUE"
		}
		return "FALSE"
	}, func(s string) string {
		return strings.TrimSpace(pq.QuoteLiteral(s))
	})
}

var serialTypes = map[string]string{
	"int":      "serial",
	"bigint":   "bigserial",
	"smallint": "smallserial",
}

func (r *postgresRenderer) columnDefinition(col model.ColumnInfo) string {
	if col.AutoIncrement {
		if r.caps.IdentityColumns {
			parts := r.columnDefinitionParts(col, col.DataType, false)
			return strings.Join(append(parts, "GENERATED BY DEFAULT AS IDENTITY"), " ")
		}
		if serial, ok := serialTypes[model.NormalizeDataType(col.DataType)]; ok {
			return strings.Join(r.columnDefinitionParts(col, serial, false), " ")
		}
	}
	return strings.Join(r.columnDefinitionParts(col, col.DataType, true), " ")
}

func (r *postgresRenderer) VisitAlterColumn(c *command.AlterColumn) error {
	table := r.FullName(c.Table)
	col := r.quote(c.New.ColumnName)
	if !model.DataTypesEqual(c.Old.DataType, c.New.DataType) {
		r.emit("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", table, col, c.New.DataType, col, c.New.DataType)
	}
	if c.Old.NotNull != c.New.NotNull {
		if c.New.NotNull {
			r.emit("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col)
		} else {
			r.emit("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, col)
		}
	}
	if c.Old.AutoIncrement != c.New.AutoIncrement && r.caps.IdentityColumns {
		if c.New.AutoIncrement {
			r.emit("ALTER TABLE %s ALTER COLUMN %s ADD GENERATED BY DEFAULT AS IDENTITY", table, col)
		} else {
			r.emit("ALTER TABLE %s ALTER COLUMN %s DROP IDENTITY IF EXISTS", table, col)
		}
	}
	return nil
}

func (r *postgresRenderer) VisitDropPrimaryKey(c *command.DropPrimaryKey) error {
	name := c.PrimaryKey.ConstraintName
	if name == "" {
		name = c.Table.PureName + "_pkey"
	}
	return r.emit("ALTER TABLE %s DROP CONSTRAINT %s", r.FullName(c.Table), r.quote(name))
}

func (r *postgresRenderer) VisitDropUnique(c *command.DropUnique) error {
	if r.caps.Engine == dialect.CockroachDB {
		return r.emit("DROP INDEX %s@%s CASCADE", r.FullName(c.Table), r.quote(c.Unique.ConstraintName))
	}
	return r.dumper.VisitDropUnique(c)
}
