// Package diff compares structural snapshots and produces the ordered commands that turn the
// old structure into the new one.
package diff

import (
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
)

// SchemaMode controls whether the schema is part of an object's identity.
type SchemaMode string

const (
	// SchemaModeIgnore pairs objects regardless of their schema.
	SchemaModeIgnore SchemaMode = "ignore"
	// SchemaModeStrict pairs objects only within the same schema.
	SchemaModeStrict SchemaMode = "strict"
)

// Options tunes both diff engines.
type Options struct {
	// Deleted*Prefix, when set, turns drops into renames to the prefixed name.
	DeletedTablePrefix     string
	DeletedColumnPrefix    string
	DeletedSQLObjectPrefix string

	SchemaMode SchemaMode

	NoDropTable     bool
	NoDropColumn    bool
	NoDropSQLObject bool

	// IgnoreForeignKeyActions compares foreign keys without their ON DELETE / ON UPDATE actions.
	IgnoreForeignKeyActions bool
}

func (o Options) strict() bool {
	return o.SchemaMode == SchemaModeStrict
}

// Result is the outcome of a diff.
type Result struct {
	Commands []command.Command
	IsEmpty  bool
}

// ScriptResult is a Result rendered to SQL.
type ScriptResult struct {
	Result
	SQL string
}

func newResult(cmds []command.Command) Result {
	return Result{Commands: cmds, IsEmpty: len(cmds) == 0}
}

func renderResult(res Result, r render.Renderer) (*ScriptResult, error) {
	sql, err := r.Render(res.Commands)
	if err != nil {
		return nil, fmt.Errorf("failed to render alter script: %w", err)
	}
	return &ScriptResult{Result: res, SQL: sql}, nil
}

// tableKeyFunc builds the identity key of a table from its schema and name.
type tableKeyFunc func(schemaName, pureName string) string

func (o Options) tableKey() tableKeyFunc {
	if o.strict() {
		return func(schemaName, pureName string) string {
			return schemaName + "." + pureName
		}
	}
	return func(_, pureName string) string {
		return pureName
	}
}

// tableMatchKeys are the keys tables are paired by: pairing id, name, then undelete.
func tableMatchKeys(opts Options) []matchKey[model.TableInfo] {
	key := opts.tableKey()
	keys := []matchKey[model.TableInfo]{
		symmetric(func(t model.TableInfo) string {
			if t.PairingID == "" {
				return ""
			}
			if opts.strict() {
				return t.SchemaName + "/" + t.PairingID
			}
			return t.PairingID
		}),
		symmetric(func(t model.TableInfo) string {
			return key(t.SchemaName, t.PureName)
		}),
	}
	if prefix := opts.DeletedTablePrefix; prefix != "" {
		keys = append(keys, matchKey[model.TableInfo]{
			old: func(t model.TableInfo) string {
				if !strings.HasPrefix(t.PureName, prefix) {
					return ""
				}
				return key(t.SchemaName, strings.TrimPrefix(t.PureName, prefix))
			},
			new: func(t model.TableInfo) string {
				return key(t.SchemaName, t.PureName)
			},
		})
	}
	return keys
}

// tableRenames maps old table keys to the pure name of their pair in the new snapshot.
func tableRenames(oldDb, newDb model.DatabaseInfo, opts Options) map[string]string {
	key := opts.tableKey()
	pairs, _, _ := pairItems(oldDb.Tables, newDb.Tables, tableMatchKeys(opts)...)
	renames := make(map[string]string, len(pairs))
	for _, p := range pairs {
		old := oldDb.Tables[p.old]
		renames[key(old.SchemaName, old.PureName)] = newDb.Tables[p.new].PureName
	}
	return renames
}

// AlterDatabase compares two snapshots and returns the commands that transform oldDb into
// newDb. Commands are ordered so that dependencies hold: foreign keys are dropped before the
// tables they reference and SQL objects are created after the objects they mention.
func AlterDatabase(oldDb, newDb model.DatabaseInfo, opts Options, caps dialect.Capabilities) Result {
	key := opts.tableKey()
	renames := tableRenames(oldDb, newDb, opts)

	var (
		schemaCreates []command.Command
		fkDrops       []command.Command
		earlyDrops    []command.Command
		renameCmds    []command.Command
		alters        []command.Command
		drops         []command.Command
		creates       []command.Command
		fkAdds        []command.Command
		schemaDrops   []command.Command
	)

	schemaCreates, schemaDrops = diffSchemas(oldDb.Schemas, newDb.Schemas, opts, caps)

	pairs, oldOnly, newOnly := pairItems(oldDb.Tables, newDb.Tables, tableMatchKeys(opts)...)

	// renameTargets are the keys tables are renamed to; a dropped table holding one of them goes
	// before the renames
	renameTargets := make(map[string]bool)
	// rebuilt lists the tables whose dependent SQL objects must be dropped and created again
	var rebuilt []string

	for _, p := range pairs {
		oldTable, newTable := oldDb.Tables[p.old], newDb.Tables[p.new]
		if oldTable.PureName != newTable.PureName {
			renameCmds = append(renameCmds, &command.RenameTable{Table: oldTable.Name(), NewName: newTable.PureName})
			renameTargets[key(oldTable.SchemaName, newTable.PureName)] = true
		}
		tp := alterTable(oldTable, newTable, opts, renames, key, caps)
		if rebuildsDependents(tp.body) {
			rebuilt = append(rebuilt, oldTable.PureName, newTable.PureName)
		}
		fkDrops = append(fkDrops, tp.fkDrops...)
		alters = append(alters, tp.body...)
		alters = append(alters, tp.comments...)
		fkAdds = append(fkAdds, tp.fkAdds...)
	}

	var dropped []model.TableInfo
	for _, i := range oldOnly {
		table := oldDb.Tables[i]
		prefix := opts.DeletedTablePrefix
		switch {
		case prefix != "" && strings.HasPrefix(table.PureName, prefix):
			// already marked deleted
		case prefix != "":
			renameCmds = append(renameCmds, &command.RenameTable{Table: table.Name(), NewName: prefix + table.PureName})
			renameTargets[key(table.SchemaName, prefix+table.PureName)] = true
		case opts.NoDropTable:
		default:
			dropped = append(dropped, table)
		}
	}
	for _, table := range reversedTables(sortTablesByForeignKeys(dropped, key)) {
		if caps.AlterConstraints {
			for _, fk := range table.ForeignKeys {
				fkDrops = append(fkDrops, &command.DropForeignKey{Table: table.Name(), ForeignKey: fk})
			}
		}
		rebuilt = append(rebuilt, table.PureName)
		if renameTargets[key(table.SchemaName, table.PureName)] {
			earlyDrops = append(earlyDrops, &command.DropTable{Table: table})
			continue
		}
		drops = append(drops, &command.DropTable{Table: table})
	}

	var created []model.TableInfo
	for _, i := range newOnly {
		created = append(created, newDb.Tables[i])
	}
	for _, table := range sortTablesByForeignKeys(created, key) {
		creates = append(creates, &command.CreateTable{Table: table, WithForeignKeys: !caps.AlterConstraints})
		if caps.AlterConstraints {
			for _, fk := range table.ForeignKeys {
				fkAdds = append(fkAdds, &command.AddForeignKey{Table: table.Name(), ForeignKey: fk})
			}
		}
	}

	oldObjects := oldDb.AllSQLObjects()
	objDrops, objRenames, objCreates := diffSQLObjects(oldObjects, newDb.AllSQLObjects(), dependentObjects(oldObjects, rebuilt), opts, caps)
	renameCmds = append(renameCmds, objRenames...)

	var cmds []command.Command
	for _, phase := range [][]command.Command{
		schemaCreates, fkDrops, objDrops, earlyDrops, renameCmds, alters, drops, creates, fkAdds, objCreates, schemaDrops,
	} {
		cmds = append(cmds, phase...)
	}
	return newResult(cmds)
}

// rebuildsDependents reports whether a table body drops or retypes columns, or rebuilds the
// table, which views and routines over it do not survive.
func rebuildsDependents(body []command.Command) bool {
	for _, cmd := range body {
		switch cmd.(type) {
		case *command.RecreateTable, *command.DropColumn, *command.AlterColumn:
			return true
		}
	}
	return false
}

// AlterDatabaseScript is AlterDatabase rendered with r, using the renderer's capabilities.
func AlterDatabaseScript(oldDb, newDb model.DatabaseInfo, opts Options, r render.Renderer) (*ScriptResult, error) {
	return renderResult(AlterDatabase(oldDb, newDb, opts, r.Capabilities()), r)
}

func reversedTables(tables []model.TableInfo) []model.TableInfo {
	order := make([]int, len(tables))
	for i := range order {
		order[i] = i
	}
	return pick(tables, reversed(order))
}
