package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/model"
)

// ErrNoKey is returned when a table declares rows but neither an insert key nor a primary key.
var ErrNoKey = errors.New("table has preloaded rows but no key to match them by")

// rowReader reads the given columns of every row of an existing table.
type rowReader func(ctx context.Context, table model.TableInfo, columns []string) ([]map[string]any, error)

func connRowReader(session *session) rowReader {
	return func(ctx context.Context, table model.TableInfo, columns []string) ([]map[string]any, error) {
		conn, err := session.conn(ctx)
		if err != nil {
			return nil, err
		}
		r := conn.CreateDumper()
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = r.QuoteIdentifier(c)
		}
		query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), r.FullName(table.Name()))
		res, err := conn.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows of %s: %w", table.Name(), err)
		}
		return res.Rows, nil
	}
}

// rowKey identifies a row by the values of the key columns.
func rowKey(row map[string]any, key []string) string {
	parts := make([]string, len(key))
	for i, col := range key {
		parts[i] = valueString(row[col])
	}
	return strings.Join(parts, "\x00")
}

// valueString compares values read from the database with values declared in YAML, which
// differ in Go type (int64 vs int, string vs []byte).
func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return "\x00null"
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

// rowColumns returns the columns of a declared row in table column order, unknown columns last.
func rowColumns(table model.TableInfo, row map[string]any) []string {
	var cols []string
	for _, c := range table.Columns {
		if _, ok := row[c.ColumnName]; ok {
			cols = append(cols, c.ColumnName)
		}
	}
	var rest []string
	for name := range row {
		if !slices.Contains(cols, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func dataKey(table model.TableInfo) ([]string, error) {
	if len(table.PreloadedRowsKey) > 0 {
		return table.PreloadedRowsKey, nil
	}
	if pk := table.PrimaryKeyColumns(); len(pk) > 0 {
		return pk, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoKey, table.Name())
}

// dataCommands reconciles the preloaded rows of every target table: missing keys are
// inserted, changed columns of existing rows are updated unless they are insert-only.
// current holds the structure before the deploy; rows are read from the table the target
// table pairs with, which may carry the deleted prefix.
func dataCommands(ctx context.Context, target, current model.DatabaseInfo, opts Options, read rowReader) ([]command.Command, error) {
	var cmds []command.Command
	for _, table := range target.Tables {
		if len(table.PreloadedRows) == 0 {
			continue
		}
		key, err := dataKey(table)
		if err != nil {
			return nil, err
		}
		name := table.Name()

		existing := make(map[string]map[string]any)
		if source, ok := pairedTable(current, table, opts); ok {
			columns := readableColumns(source, table)
			if columnsCover(columns, key) {
				rows, err := read(ctx, source, columns)
				if err != nil {
					return nil, err
				}
				for _, row := range rows {
					existing[rowKey(row, key)] = row
				}
			}
		}

		for _, row := range table.PreloadedRows {
			cols := rowColumns(table, row)
			old, found := existing[rowKey(row, key)]
			if !found {
				values := make([]command.ColumnValue, len(cols))
				for i, c := range cols {
					values[i] = command.ColumnValue{Column: c, Value: row[c]}
				}
				cmds = append(cmds, &command.Insert{Table: name, Values: values})
				continue
			}

			var set []command.ColumnValue
			for _, c := range cols {
				if slices.Contains(key, c) || slices.Contains(table.PreloadedRowsInsertOnly, c) {
					continue
				}
				if oldValue, ok := old[c]; ok && valueString(oldValue) == valueString(row[c]) {
					continue
				}
				set = append(set, command.ColumnValue{Column: c, Value: row[c]})
			}
			if len(set) == 0 {
				continue
			}
			where := make([]command.ColumnValue, len(key))
			for i, c := range key {
				where[i] = command.ColumnValue{Column: c, Value: row[c]}
			}
			cmds = append(cmds, &command.Update{Table: name, Set: set, Where: where})
		}
	}
	return cmds, nil
}

// pairedTable finds the current table a target table is reconciled with: same name, or the
// soft-deleted copy it is restored from.
func pairedTable(current model.DatabaseInfo, table model.TableInfo, opts Options) (model.TableInfo, bool) {
	if t, ok := findTable(current, table.PureName); ok {
		return t, true
	}
	if opts.MarkDeleted {
		return findTable(current, opts.deletedPrefix()+table.PureName)
	}
	return model.TableInfo{}, false
}

// readableColumns are the declared data columns that already exist in source.
func readableColumns(source, table model.TableInfo) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range table.PreloadedRows {
		for name := range row {
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, ok := source.Column(name); ok {
				cols = append(cols, name)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func columnsCover(columns, key []string) bool {
	for _, k := range key {
		if !slices.Contains(columns, k) {
			return false
		}
	}
	return true
}
