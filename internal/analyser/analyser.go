// Package analyser reads the structure of a live database into a model.DatabaseInfo snapshot.
//
// An Analyser works over an engine Catalog. Full analysis reads every object; incremental
// analysis compares content hashes with a previous snapshot and reads only what changed.
package analyser

import (
	"context"
	"fmt"

	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/dbgate/dbdeploy/internal/ignore"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/dbgate/dbdeploy/model"
)

// Catalog is the engine specific part of analysis.
//
// FastSnapshot lists every table and SQL object with an engine specific content signature in
// ContentHash; the analyser hashes it. Tables and SQLObjects read full definitions of the objects
// with the given ids, or of every object when ids is nil.
type Catalog interface {
	FastSnapshot(ctx context.Context) (model.FastSnapshot, error)
	Tables(ctx context.Context, ids []string) ([]model.TableInfo, error)
	SQLObjects(ctx context.Context, ids []string) ([]model.SQLObjectInfo, error)
	Schemas(ctx context.Context) ([]model.SchemaInfo, error)
}

// Analyser builds structure snapshots from a catalog
type Analyser struct {
	catalog      Catalog
	ignoreConfig *ignore.IgnoreConfig
}

// New creates an analyser with optional ignore configuration
func New(catalog Catalog, ignoreConfig *ignore.IgnoreConfig) *Analyser {
	return &Analyser{catalog: catalog, ignoreConfig: ignoreConfig}
}

// FastSnapshot returns the hashed fast snapshot of the database, without ignored objects.
func (a *Analyser) FastSnapshot(ctx context.Context) (model.FastSnapshot, error) {
	snapshot, err := a.catalog.FastSnapshot(ctx)
	if err != nil {
		return model.FastSnapshot{}, fmt.Errorf("failed to read fast snapshot: %w", err)
	}
	res := model.FastSnapshot{Objects: make([]model.FastObject, 0, len(snapshot.Objects))}
	for _, obj := range snapshot.Objects {
		if a.ignoreConfig.ShouldIgnore(obj.ObjectType, model.NameInfo{SchemaName: obj.SchemaName, PureName: obj.PureName}) {
			continue
		}
		obj.ContentHash = fingerprint.HashString(obj.ContentHash)
		res.Objects = append(res.Objects, obj)
	}
	return res, nil
}

// Full analyses every object of the database.
func (a *Analyser) Full(ctx context.Context) (*model.DatabaseInfo, error) {
	fast, err := a.FastSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := a.catalog.Tables(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyse tables: %w", err)
	}
	objects, err := a.catalog.SQLObjects(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyse SQL objects: %w", err)
	}
	schemas, err := a.catalog.Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to analyse schemas: %w", err)
	}

	db := assemble(fast, tables, objects, schemas)
	db = a.ignoreConfig.Apply(db)
	logger.Component("analyser").Debug("Full analysis finished", "tables", len(db.Tables), "sqlObjects", len(db.AllSQLObjects()))
	return &db, nil
}

// Incremental re-analyses only objects added or changed since previous and drops removed ones.
// It returns nil when nothing changed. A nil previous snapshot means full analysis.
func (a *Analyser) Incremental(ctx context.Context, previous *model.DatabaseInfo) (*model.DatabaseInfo, error) {
	if previous == nil {
		return a.Full(ctx)
	}
	fast, err := a.FastSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	changes := model.CompareFast(previous.FastProjection(), fast)
	if changes.Empty() {
		logger.Component("analyser").Debug("Incremental analysis found no changes")
		return nil, nil
	}

	var tables []model.TableInfo
	if ids := changes.NeedsAnalysis(model.ObjectTypeTable); len(ids) > 0 {
		if tables, err = a.catalog.Tables(ctx, ids); err != nil {
			return nil, fmt.Errorf("failed to analyse tables: %w", err)
		}
	}
	var objects []model.SQLObjectInfo
	if ids := changes.NeedsAnalysis(model.SQLObjectTypes...); len(ids) > 0 {
		if objects, err = a.catalog.SQLObjects(ctx, ids); err != nil {
			return nil, fmt.Errorf("failed to analyse SQL objects: %w", err)
		}
	}
	schemas, err := a.catalog.Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to analyse schemas: %w", err)
	}

	// unchanged objects come from the previous snapshot; assemble keeps only ids still present
	prev := previous.Clone()
	tables = append(tables, prev.Tables...)
	objects = append(objects, prev.AllSQLObjects()...)

	db := assemble(fast, tables, objects, schemas)
	db = a.ignoreConfig.Apply(db)
	logger.Component("analyser").Debug("Incremental analysis finished",
		"added", len(changes.Added), "changed", len(changes.Changed), "removed", len(changes.Removed))
	return &db, nil
}

// assemble orders objects as in the fast snapshot and stamps their content hashes. When an id
// occurs more than once the first object wins; objects missing from the fast snapshot are left
// out.
func assemble(fast model.FastSnapshot, tables []model.TableInfo, objects []model.SQLObjectInfo, schemas []model.SchemaInfo) model.DatabaseInfo {
	tableByID := make(map[string]model.TableInfo, len(tables))
	for _, t := range tables {
		if _, ok := tableByID[t.ObjectID]; !ok {
			tableByID[t.ObjectID] = t
		}
	}
	objectByKey := make(map[string]model.SQLObjectInfo, len(objects))
	for _, o := range objects {
		key := string(o.ObjectType) + "/" + o.ObjectID
		if _, ok := objectByKey[key]; !ok {
			objectByKey[key] = o
		}
	}

	var db model.DatabaseInfo
	var sqlObjects []model.SQLObjectInfo
	for _, f := range fast.Objects {
		if f.ObjectType == model.ObjectTypeTable {
			if t, ok := tableByID[f.ObjectID]; ok {
				t.ContentHash = f.ContentHash
				db.Tables = append(db.Tables, t)
			}
			continue
		}
		if o, ok := objectByKey[string(f.ObjectType)+"/"+f.ObjectID]; ok {
			o.ContentHash = f.ContentHash
			sqlObjects = append(sqlObjects, o)
		}
	}
	db.Schemas = schemas
	return db.WithSQLObjects(sqlObjects)
}
