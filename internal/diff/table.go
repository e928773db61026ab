package diff

import (
	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
)

// tablePlan holds the commands of one altered table, split by the phase they run in.
type tablePlan struct {
	fkDrops  []command.Command
	body     []command.Command
	fkAdds   []command.Command
	comments []command.Command
}

// tableAlter accumulates the changes of one table pair.
type tableAlter struct {
	caps     dialect.Capabilities
	opts     Options
	name     model.NameInfo
	oldTable model.TableInfo
	newTable model.TableInfo

	tableRenames map[string]string
	tableKey     tableKeyFunc

	// columnRenames maps old column names to the names they end with
	columnRenames map[string]string
	// result and columnMap describe the final structure for RecreateTable
	result    []model.ColumnInfo
	kept      []model.ColumnInfo
	columnMap map[string]string
	recreate  bool

	fkDrops    []command.Command
	pre        []command.Command
	colDrops   []command.Command
	colRenames []command.Command
	colAdds    []command.Command
	colAlters  []command.Command
	post       []command.Command
	fkAdds     []command.Command
	comments   []command.Command
}

// constraint appends cmd when the engine can alter constraints, otherwise marks the table for
// recreation.
func (a *tableAlter) constraint(dst *[]command.Command, cmd command.Command) {
	if !a.caps.AlterConstraints {
		a.recreate = true
		return
	}
	*dst = append(*dst, cmd)
}

func alterTable(oldTable, newTable model.TableInfo, opts Options, renames map[string]string, key tableKeyFunc, caps dialect.Capabilities) tablePlan {
	a := &tableAlter{
		caps:          caps,
		opts:          opts,
		name:          model.NameInfo{SchemaName: oldTable.SchemaName, PureName: newTable.PureName},
		oldTable:      oldTable,
		newTable:      newTable,
		tableRenames:  renames,
		tableKey:      key,
		columnRenames: make(map[string]string),
		columnMap:     make(map[string]string),
	}

	a.diffColumns()
	a.diffPrimaryKey()
	a.diffUniques()
	a.diffIndexes()
	a.diffForeignKeys()

	if caps.TableComments && oldTable.ObjectComment != newTable.ObjectComment {
		a.comments = append(a.comments, &command.SetTableComment{Table: a.name, Comment: newTable.ObjectComment})
	}

	if a.recreate && caps.RecreateTable {
		// the rename runs first, so the copy reads from the new name
		current := oldTable.Clone()
		current.PureName = newTable.PureName
		rebuilt := newTable.Clone()
		rebuilt.SchemaName = a.name.SchemaName
		rebuilt.Columns = append(a.result, a.kept...)
		return tablePlan{body: []command.Command{&command.RecreateTable{Old: current, New: rebuilt, ColumnMap: a.columnMap}}}
	}

	var body []command.Command
	for _, phase := range [][]command.Command{a.pre, a.colDrops, a.colRenames, a.colAdds, a.colAlters, a.post} {
		body = append(body, phase...)
	}
	return tablePlan{fkDrops: a.fkDrops, body: body, fkAdds: a.fkAdds, comments: a.comments}
}

// AlterTable compares two versions of a table and returns the commands that transform
// oldTable into newTable. oldDb and newDb resolve the tables foreign keys refer to.
func AlterTable(oldTable, newTable model.TableInfo, opts Options, oldDb, newDb model.DatabaseInfo, caps dialect.Capabilities) []command.Command {
	tp := alterTable(oldTable, newTable, opts, tableRenames(oldDb, newDb, opts), opts.tableKey(), caps)

	cmds := tp.fkDrops
	if oldTable.PureName != newTable.PureName {
		cmds = append(cmds, &command.RenameTable{Table: oldTable.Name(), NewName: newTable.PureName})
	}
	for _, phase := range [][]command.Command{tp.body, tp.fkAdds, tp.comments} {
		cmds = append(cmds, phase...)
	}
	return cmds
}

// AlterTableScript is AlterTable rendered with r, using the renderer's capabilities.
func AlterTableScript(oldTable, newTable model.TableInfo, opts Options, oldDb, newDb model.DatabaseInfo, r render.Renderer) (*ScriptResult, error) {
	return renderResult(newResult(AlterTable(oldTable, newTable, opts, oldDb, newDb, r.Capabilities())), r)
}
