// Package ignore filters catalog objects out of analysis by name patterns.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/dbgate/dbdeploy/model"
)

// IgnoreConfig represents the configuration for ignoring database objects
type IgnoreConfig struct {
	Tables     []string `toml:"tables,omitempty"`
	Views      []string `toml:"views,omitempty"`
	MatViews   []string `toml:"matviews,omitempty"`
	Functions  []string `toml:"functions,omitempty"`
	Procedures []string `toml:"procedures,omitempty"`
}

// ShouldIgnore checks whether an object of the given type is ignored. Patterns are matched
// against the pure name and against schema.name.
func (c *IgnoreConfig) ShouldIgnore(objectType model.ObjectType, name model.NameInfo) bool {
	if c == nil {
		return false
	}
	patterns := c.patterns(objectType)
	return c.shouldIgnore(name.PureName, patterns) ||
		(name.SchemaName != "" && c.shouldIgnore(name.String(), patterns))
}

// ShouldIgnoreTable checks if a table should be ignored based on the patterns
func (c *IgnoreConfig) ShouldIgnoreTable(tableName string) bool {
	return c.ShouldIgnore(model.ObjectTypeTable, model.NameInfo{PureName: tableName})
}

func (c *IgnoreConfig) patterns(objectType model.ObjectType) []string {
	switch objectType {
	case model.ObjectTypeTable:
		return c.Tables
	case model.ObjectTypeView:
		return c.Views
	case model.ObjectTypeMatView:
		return c.MatViews
	case model.ObjectTypeFunction:
		return c.Functions
	case model.ObjectTypeProcedure:
		return c.Procedures
	}
	return nil
}

// Apply returns db without the ignored objects.
func (c *IgnoreConfig) Apply(db model.DatabaseInfo) model.DatabaseInfo {
	if c == nil {
		return db
	}
	res := db
	res.Tables = nil
	for _, t := range db.Tables {
		if !c.ShouldIgnore(model.ObjectTypeTable, t.Name()) {
			res.Tables = append(res.Tables, t)
		}
	}
	var objects []model.SQLObjectInfo
	for _, obj := range db.AllSQLObjects() {
		if !c.ShouldIgnore(obj.ObjectType, obj.Name()) {
			objects = append(objects, obj)
		}
	}
	return res.WithSQLObjects(objects)
}

// shouldIgnore checks if a name should be ignored based on the patterns
// Patterns support wildcards (*) and negation (!)
// Negation patterns (starting with !) take precedence over inclusion patterns
func (c *IgnoreConfig) shouldIgnore(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	matched := false
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "!") {
			continue
		}
		if matchPattern(pattern, name) {
			matched = true
			break
		}
	}

	for _, pattern := range patterns {
		if !strings.HasPrefix(pattern, "!") {
			continue
		}
		if matchPattern(pattern[1:], name) {
			return false
		}
	}

	return matched
}

// matchPattern matches a glob-style pattern against a string
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		// invalid patterns match literally
		return pattern == name
	}
	return matched
}
