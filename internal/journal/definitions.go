package journal

import (
	"context"
	"fmt"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/dbgate/dbdeploy/model"
)

// Catalogs return views and routines in their own formatting, which never matches the text of
// the model. The definitions table keeps the hash of the text each object was deployed from.

// DefinitionsName returns the table storing the definition hashes of deployed SQL objects.
func (c Config) DefinitionsName() model.NameInfo {
	name := c.Name()
	name.PureName += "_objects"
	return name
}

// DefinitionsTable returns the structure of the definitions table.
func (c Config) DefinitionsTable() model.TableInfo {
	name := c.DefinitionsName()
	return model.TableInfo{
		SchemaName: name.SchemaName,
		PureName:   name.PureName,
		Columns: []model.ColumnInfo{
			{ColumnName: "object_type", DataType: "varchar(50)", NotNull: true},
			{ColumnName: "name", DataType: "varchar(250)", NotNull: true},
			{ColumnName: "definition_hash", DataType: "varchar(64)", NotNull: true},
		},
		PrimaryKey: &model.PrimaryKeyInfo{Columns: []model.IndexColumn{{ColumnName: "object_type"}, {ColumnName: "name"}}},
	}
}

// DefinitionKey identifies a SQL object in the map returned by Definitions.
func DefinitionKey(objectType model.ObjectType, pureName string) string {
	return string(objectType) + "/" + pureName
}

// DefinitionHash hashes the normalized text of a definition.
func DefinitionHash(createSQL string) string {
	return fingerprint.HashString(model.NormalizeSQL(createSQL))
}

// DefinitionsExist reports whether the definitions table exists.
func (j *Journal) DefinitionsExist(ctx context.Context) (bool, error) {
	return j.tableExists(ctx, j.config.DefinitionsName())
}

// Definitions returns the recorded definition hashes by DefinitionKey. A missing table yields
// an empty map.
func (j *Journal) Definitions(ctx context.Context) (map[string]string, error) {
	exists, err := j.DefinitionsExist(ctx)
	if err != nil || !exists {
		return map[string]string{}, err
	}
	r := j.conn.CreateDumper()
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		r.QuoteIdentifier("object_type"), r.QuoteIdentifier("name"), r.QuoteIdentifier("definition_hash"),
		r.FullName(j.config.DefinitionsName()))
	res, err := j.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read object definitions: %w", err)
	}
	hashes := make(map[string]string, len(res.Rows))
	for _, row := range res.Rows {
		key := DefinitionKey(model.ObjectType(fmt.Sprint(row["object_type"])), fmt.Sprint(row["name"]))
		hashes[key] = fmt.Sprint(row["definition_hash"])
	}
	return hashes, nil
}

// RecordDefinitionCommand returns the command storing the definition hash of obj: an insert
// when the object has no row yet, an update otherwise.
func RecordDefinitionCommand(config Config, obj model.SQLObjectInfo, exists bool) command.Command {
	hash := DefinitionHash(obj.CreateSQL)
	if !exists {
		return &command.Insert{
			Table: config.DefinitionsName(),
			Values: []command.ColumnValue{
				{Column: "object_type", Value: string(obj.ObjectType)},
				{Column: "name", Value: obj.PureName},
				{Column: "definition_hash", Value: hash},
			},
		}
	}
	return &command.Update{
		Table: config.DefinitionsName(),
		Set:   []command.ColumnValue{{Column: "definition_hash", Value: hash}},
		Where: []command.ColumnValue{
			{Column: "object_type", Value: string(obj.ObjectType)},
			{Column: "name", Value: obj.PureName},
		},
	}
}
