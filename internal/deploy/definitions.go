package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/journal"
	"github.com/dbgate/dbdeploy/internal/plan"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
)

// definitions holds the hashes of the model text SQL objects were deployed from. A nil value
// means the target is not connected and definitions are not tracked.
type definitions struct {
	hashes      map[string]string
	tableExists bool
}

// loadDefinitions reads the recorded definitions when the deploy has a connection.
func loadDefinitions(ctx context.Context, s *session, config journal.Config) (*definitions, error) {
	conn := s.connected()
	if conn == nil {
		return nil, nil
	}
	j := journal.New(conn, config)
	exists, err := j.DefinitionsExist(ctx)
	if err != nil {
		return nil, err
	}
	defs := &definitions{hashes: map[string]string{}, tableExists: exists}
	if exists {
		if defs.hashes, err = j.Definitions(ctx); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// apply swaps the catalog text of each SQL object for its model text when the recorded hash
// shows the model did not change since the object was deployed. Objects marked deleted are
// matched under their original name.
func (d *definitions) apply(current, target model.DatabaseInfo, opts Options) model.DatabaseInfo {
	if d == nil || len(d.hashes) == 0 {
		return current
	}
	declared := make(map[string]model.SQLObjectInfo)
	for _, obj := range target.AllSQLObjects() {
		declared[journal.DefinitionKey(obj.ObjectType, obj.PureName)] = obj
	}

	objects := current.AllSQLObjects()
	for i, obj := range objects {
		name := obj.PureName
		if opts.MarkDeleted {
			name = strings.TrimPrefix(name, opts.deletedPrefix())
		}
		key := journal.DefinitionKey(obj.ObjectType, name)
		decl, ok := declared[key]
		if !ok || d.hashes[key] != journal.DefinitionHash(decl.CreateSQL) {
			continue
		}
		objects[i].CreateSQL = strings.Replace(decl.CreateSQL, decl.PureName, obj.PureName, 1)
	}
	return current.WithSQLObjects(objects)
}

// record attaches the definition of every model SQL object the structure step creates to the
// step creating it. steps[first:] are the steps of cmds.
func (d *definitions) record(p *plan.Plan, first int, cmds []command.Command, target model.DatabaseInfo, config journal.Config, r render.Renderer) error {
	if d == nil {
		return nil
	}
	declared := make(map[string]bool)
	for _, obj := range target.AllSQLObjects() {
		declared[journal.DefinitionKey(obj.ObjectType, obj.PureName)] = true
	}

	recorded := false
	for i, cmd := range cmds {
		create, ok := cmd.(*command.CreateSQLObject)
		if !ok {
			continue
		}
		key := journal.DefinitionKey(create.Object.ObjectType, create.Object.PureName)
		if !declared[key] {
			continue
		}
		_, exists := d.hashes[key]
		statements, err := r.RenderCommand(journal.RecordDefinitionCommand(config, create.Object, exists))
		if err != nil {
			return fmt.Errorf("failed to render definition record: %w", err)
		}
		p.Steps[first+i].Journal = statements
		d.hashes[key] = journal.DefinitionHash(create.Object.CreateSQL)
		recorded = true
	}

	if recorded && !d.tableExists {
		create, err := r.RenderCommand(&command.CreateTable{Table: config.DefinitionsTable(), WithForeignKeys: true})
		if err != nil {
			return err
		}
		p.CreateJournal = append(p.CreateJournal, create...)
		d.tableExists = true
	}
	return nil
}
