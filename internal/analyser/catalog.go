package analyser

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

// NewCatalog returns the catalog reader of the engine described by caps.
func NewCatalog(db *sql.DB, caps dialect.Capabilities) (Catalog, error) {
	switch caps.Engine {
	case dialect.Postgres, dialect.CockroachDB:
		return &postgresCatalog{db: db, caps: caps}, nil
	case dialect.MySQL:
		return &mysqlCatalog{db: db}, nil
	case dialect.SQLServer:
		return &sqlServerCatalog{db: db}, nil
	case dialect.SQLite:
		return &sqliteCatalog{db: db}, nil
	}
	return nil, fmt.Errorf("%w: %q", dialect.ErrUnsupportedEngine, caps.Engine)
}

// idFilter selects objects by id. A nil filter selects everything.
type idFilter map[string]bool

func newIDFilter(ids []string) idFilter {
	if ids == nil {
		return nil
	}
	f := make(idFilter, len(ids))
	for _, id := range ids {
		f[id] = true
	}
	return f
}

func (f idFilter) has(id string) bool {
	return f == nil || f[id]
}

// queryEach runs query and calls scan for every row.
func queryEach(ctx context.Context, db *sql.DB, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// tableSet collects tables by object id while catalog queries fill in their parts.
type tableSet struct {
	order []string
	byID  map[string]*model.TableInfo
}

func newTableSet() *tableSet {
	return &tableSet{byID: make(map[string]*model.TableInfo)}
}

func (s *tableSet) add(t model.TableInfo) {
	if _, ok := s.byID[t.ObjectID]; ok {
		return
	}
	s.order = append(s.order, t.ObjectID)
	s.byID[t.ObjectID] = &t
}

func (s *tableSet) get(id string) *model.TableInfo {
	return s.byID[id]
}

func (s *tableSet) ids() []string {
	return s.order
}

// addIndexColumn appends a column to the named index, unique or primary key of a table,
// creating the constraint on first use.
func (s *tableSet) addIndexColumn(id, kind, name string, col model.IndexColumn, isUnique bool, filter string) {
	t := s.get(id)
	if t == nil {
		return
	}
	switch kind {
	case "primary":
		if t.PrimaryKey == nil {
			t.PrimaryKey = &model.PrimaryKeyInfo{ConstraintName: name}
		}
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, col)
	case "unique":
		for i := range t.Uniques {
			if t.Uniques[i].ConstraintName == name {
				t.Uniques[i].Columns = append(t.Uniques[i].Columns, col)
				return
			}
		}
		t.Uniques = append(t.Uniques, model.UniqueInfo{ConstraintName: name, Columns: []model.IndexColumn{col}})
	default:
		for i := range t.Indexes {
			if t.Indexes[i].ConstraintName == name {
				t.Indexes[i].Columns = append(t.Indexes[i].Columns, col)
				return
			}
		}
		t.Indexes = append(t.Indexes, model.IndexInfo{
			ConstraintName: name,
			Columns:        []model.IndexColumn{col},
			IsUnique:       isUnique,
			Filter:         filter,
		})
	}
}

// addForeignKeyColumn appends a column pair to the named foreign key of a table.
func (s *tableSet) addForeignKeyColumn(id string, fk model.ForeignKeyInfo, ref model.ColumnReference) {
	t := s.get(id)
	if t == nil {
		return
	}
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].ConstraintName == fk.ConstraintName {
			t.ForeignKeys[i].Columns = append(t.ForeignKeys[i].Columns, ref)
			return
		}
	}
	fk.Columns = []model.ColumnReference{ref}
	t.ForeignKeys = append(t.ForeignKeys, fk)
}

func (s *tableSet) tables() []model.TableInfo {
	res := make([]model.TableInfo, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, *s.byID[id])
	}
	return res
}

// referentialAction turns catalog spellings such as NO_ACTION or SET_NULL into SQL.
func referentialAction(action string) string {
	action = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(action), "_", " "))
	if action == "" {
		return "NO ACTION"
	}
	return action
}

// nullString returns a pointer to the value of a nullable column.
func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
